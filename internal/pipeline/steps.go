package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deepcheck/internal/forensics"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/scoring"
)

// InspectStep validates the input file and describes it as a MediaAsset.
// The extension decides whether the file is accepted; the probe, when it
// works, refines the media kind and stream facts.
type InspectStep struct {
	prober media.Prober
	logger *slog.Logger
}

// NewInspectStep creates an inspect step. A nil prober skips probing.
func NewInspectStep(prober media.Prober, logger *slog.Logger) *InspectStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectStep{prober: prober, logger: logger}
}

// Name returns the step name.
func (s *InspectStep) Name() string {
	return "inspect"
}

// Do executes the inspect step.
func (s *InspectStep) Do(ctx context.Context, run *Run) error {
	info, err := os.Stat(run.Path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", run.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", run.Path, model.ErrUnsupportedFormat)
	}

	kind, err := model.KindFromExtension(run.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", run.Path, err)
	}

	fingerprint, size, err := media.Fingerprint(run.Path)
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s: %w", run.Path, err)
	}

	asset := model.MediaAsset{
		Path:        run.Path,
		Fingerprint: fingerprint,
		Kind:        kind,
		SizeBytes:   size,
	}

	if s.prober != nil {
		result, err := s.prober.Probe(ctx, run.Path)
		switch {
		case err == nil:
			applyProbe(&asset, result)
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
		default:
			s.logger.Warn("probe failed, falling back to extension",
				"file", asset.Name(),
				"error_kind", model.ErrorKindOf(err),
				"error", err,
			)
		}
	}

	run.Asset = asset
	return nil
}

func applyProbe(asset *model.MediaAsset, result media.Result) {
	if kind, err := result.Kind(); err == nil {
		asset.Kind = kind
	}
	asset.FormatName = result.Format.FormatName
	asset.DurationSeconds = result.DurationSeconds()
	if stream, ok := result.VideoStream(); ok {
		asset.Width = stream.Width
		asset.Height = stream.Height
	}
}

// ChannelStep runs the selected channel analyzers concurrently.
// Each task writes only its own slot of the result array; channel failures
// become Failed results and never cancel siblings.
type ChannelStep struct {
	suite       *forensics.Suite
	selected    []model.Channel
	concurrency int
}

// NewChannelStep creates a channel step. Channels outside selected are
// reported as not applicable.
func NewChannelStep(suite *forensics.Suite, selected []model.Channel, concurrency int) *ChannelStep {
	if len(selected) == 0 {
		selected = model.Channels()
	}
	return &ChannelStep{suite: suite, selected: selected, concurrency: max(1, concurrency)}
}

// Name returns the step name.
func (s *ChannelStep) Name() string {
	return "channels"
}

// Do executes the channel step.
func (s *ChannelStep) Do(ctx context.Context, run *Run) error {
	channels := model.Channels()
	var results [3]model.ChannelResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, ch := range channels {
		slot := ch.Order()
		if !slices.Contains(s.selected, ch) {
			results[slot] = model.NotApplicable(ch, model.ReasonNotSelected)
			continue
		}
		g.Go(func() error {
			results[slot] = s.suite.Run(gctx, ch, run.Asset)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks never return errors

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}

	run.Results = results[:]
	return nil
}

// AggregateStep combines the channel results into the final report.
type AggregateStep struct {
	aggregator *scoring.Aggregator
	now        func() time.Time
}

// NewAggregateStep creates an aggregate step.
func NewAggregateStep(aggregator *scoring.Aggregator, now func() time.Time) *AggregateStep {
	if now == nil {
		now = time.Now
	}
	return &AggregateStep{aggregator: aggregator, now: now}
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return "aggregate"
}

// Do executes the aggregate step.
func (s *AggregateStep) Do(_ context.Context, run *Run) error {
	if len(run.Results) == 0 {
		return errors.New("aggregate: no channel results")
	}
	report, err := s.aggregator.Aggregate(run.Asset, run.Results)
	if err != nil {
		return err
	}
	report.ElapsedMS = s.now().Sub(run.Started).Milliseconds()
	run.Report = report
	return nil
}
