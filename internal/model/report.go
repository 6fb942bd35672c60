package model

import "time"

// Verdict labels used in human-facing output.
const (
	VerdictSynthetic     = "LIKELY SYNTHETIC"
	VerdictAuthentic     = "LIKELY AUTHENTIC"
	VerdictIndeterminate = "INDETERMINATE"
	VerdictCancelled     = "CANCELLED"
)

// AnalysisReport is the aggregated result of analyzing one asset.
// It is created once by the aggregator; IsLikelySynthetic is always
// derived from ConfidenceScore and Threshold and never set on its own.
type AnalysisReport struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Version identifies the rule and scoring set that produced the report.
	Version string `json:"version"`

	// Asset describes the analyzed file.
	Asset MediaAsset `json:"asset"`

	// Channels holds one result per channel in canonical order.
	Channels []ChannelResult `json:"channels"`

	// ConfidenceScore is the combined evidence in [0,1].
	ConfidenceScore float64 `json:"confidence_score"`

	// IsLikelySynthetic is ConfidenceScore >= Threshold.
	IsLikelySynthetic bool `json:"is_likely_synthetic"`

	// Threshold is the verdict cut-off used for this run.
	Threshold float64 `json:"threshold"`

	// EffectiveWeights holds the redistributed weight of each available channel.
	EffectiveWeights map[Channel]float64 `json:"effective_weights"`

	// Anomalies merges every channel's anomalies, sorted by severity descending.
	Anomalies []Anomaly `json:"anomalies"`

	// AnalyzedAt is when aggregation finished.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// ElapsedMS is the wall-clock duration of the run in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Verdict returns the human-readable verdict label.
func (r *AnalysisReport) Verdict() string {
	if r.IsLikelySynthetic {
		return VerdictSynthetic
	}
	return VerdictAuthentic
}

// Channel returns the result of channel ch.
func (r *AnalysisReport) Channel(ch Channel) (ChannelResult, bool) {
	for _, c := range r.Channels {
		if c.Channel == ch {
			return c, true
		}
	}
	return ChannelResult{}, false
}

// AvailableChannels returns the channels that contributed to the score.
func (r *AnalysisReport) AvailableChannels() []Channel {
	var out []Channel
	for _, c := range r.Channels {
		if c.Available() {
			out = append(out, c.Channel)
		}
	}
	return out
}

// AnomalyCountByKind counts anomalies per kind.
func (r *AnalysisReport) AnomalyCountByKind() map[AnomalyKind]int {
	counts := make(map[AnomalyKind]int)
	for _, a := range r.Anomalies {
		counts[a.Kind]++
	}
	return counts
}
