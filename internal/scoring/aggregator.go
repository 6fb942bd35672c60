package scoring

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/model"
)

// Version identifies the rule and scoring set recorded in every report.
const Version = "deepcheck-rules/2"

// Aggregator combines channel results into an AnalysisReport.
// It holds no mutable state and may be shared between goroutines.
type Aggregator struct {
	cfg   config.Scoring
	now   func() time.Time
	newID func() string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the time source used for AnalyzedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithIDGenerator sets the function that assigns report IDs.
func WithIDGenerator(fn func() string) Option {
	return func(a *Aggregator) {
		a.newID = fn
	}
}

// NewAggregator creates an aggregator for the given scoring settings.
// The weight maps are copied so later changes to cfg have no effect.
func NewAggregator(cfg config.Scoring, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg: config.Scoring{
			Threshold:      cfg.Threshold,
			ChannelWeights: maps.Clone(cfg.ChannelWeights),
			KindWeights:    maps.Clone(cfg.KindWeights),
		},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the inclusive verdict cut-off.
func (a *Aggregator) Threshold() float64 {
	return a.cfg.Threshold
}

// Aggregate scores the available channels of asset and builds the report.
// Results are reordered into canonical channel order. When no channel
// succeeded it returns ErrNoEvidenceAvailable and no report.
func (a *Aggregator) Aggregate(asset model.MediaAsset, results []model.ChannelResult) (*model.AnalysisReport, error) {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(x, y model.ChannelResult) int {
		return x.Channel.Order() - y.Channel.Order()
	})

	var available []model.Channel
	for _, r := range ordered {
		if r.Available() {
			available = append(available, r.Channel)
		}
	}
	if len(available) == 0 {
		return nil, noEvidence(ordered)
	}

	weights := EffectiveWeights(available, a.cfg.ChannelWeights)

	var confidence float64
	anomalies := make([]model.Anomaly, 0)
	for i, r := range ordered {
		if !r.Available() {
			continue
		}
		score := ChannelScore(r, a.cfg)
		ordered[i] = r.WithSubScore(score)
		confidence += weights[r.Channel] * score
		anomalies = append(anomalies, r.Anomalies...)
	}
	model.SortBySeverity(anomalies)

	confidence = model.ClampUnit(confidence)
	return &model.AnalysisReport{
		ID:                a.newID(),
		Version:           Version,
		Asset:             asset,
		Channels:          ordered,
		ConfidenceScore:   confidence,
		IsLikelySynthetic: confidence >= a.cfg.Threshold,
		Threshold:         a.cfg.Threshold,
		EffectiveWeights:  weights,
		Anomalies:         anomalies,
		AnalyzedAt:        a.now(),
	}, nil
}

// noEvidence builds the indeterminate error, listing why each channel
// produced nothing.
func noEvidence(results []model.ChannelResult) error {
	if len(results) == 0 {
		return model.ErrNoEvidenceAvailable
	}
	reasons := make([]string, 0, len(results))
	causes := []error{model.ErrNoEvidenceAvailable}
	for _, r := range results {
		reasons = append(reasons, fmt.Sprintf("%s %s", r.Channel, r.Status))
		if err := r.Err(); err != nil {
			causes = append(causes, err)
		}
	}
	return fmt.Errorf("%w (%s)", errors.Join(causes...), strings.Join(reasons, ", "))
}

// EffectiveWeights redistributes the configured channel weights over the
// available channels so they sum to 1. Negative or missing weights count as
// zero; when every available weight is zero the split is uniform.
func EffectiveWeights(available []model.Channel, configured map[model.Channel]float64) map[model.Channel]float64 {
	out := make(map[model.Channel]float64, len(available))
	if len(available) == 0 {
		return out
	}

	var total float64
	for _, ch := range available {
		total += positive(configured[ch])
	}
	for _, ch := range available {
		if total <= 0 {
			out[ch] = 1 / float64(len(available))
			continue
		}
		out[ch] = positive(configured[ch]) / total
	}
	return out
}

// ChannelScore computes the sub-score of a succeeded channel: the
// kind-weighted sum of KindEvidence capped at 1. Adding an anomaly or
// raising a severity never lowers the score. A channel without anomalies,
// or whose kinds all weigh zero, scores 0.
func ChannelScore(r model.ChannelResult, cfg config.Scoring) float64 {
	evidence := KindEvidence(r.Anomalies)
	if len(evidence) == 0 {
		return 0
	}

	kinds := make([]model.AnomalyKind, 0, len(evidence))
	for k := range evidence {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	var sum float64
	for _, k := range kinds {
		sum += positive(cfg.KindWeight(k)) * evidence[k]
	}
	return model.ClampUnit(sum)
}

// KindEvidence returns the evidence level of every kind present in
// anomalies: the strongest severity reported for that kind. Repeated
// window or frame flags of one kind count once, so longer files with more
// analyzed units do not pile up evidence.
func KindEvidence(anomalies []model.Anomaly) map[model.AnomalyKind]float64 {
	out := make(map[model.AnomalyKind]float64)
	for _, a := range anomalies {
		out[a.Kind] = math.Max(out[a.Kind], model.ClampUnit(a.Severity))
	}
	return out
}

// Contributions returns each available channel's share of the confidence
// score, effective weight times sub-score.
func Contributions(r *model.AnalysisReport) map[model.Channel]float64 {
	out := make(map[model.Channel]float64)
	for _, c := range r.Channels {
		if c.Available() {
			out[c.Channel] = r.EffectiveWeights[c.Channel] * c.Score()
		}
	}
	return out
}

func positive(w float64) float64 {
	if math.IsNaN(w) || w < 0 {
		return 0
	}
	return w
}
