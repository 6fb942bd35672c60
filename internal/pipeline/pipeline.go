package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/deepcheck/internal/model"
)

// Run carries the state of analyzing one file through the pipeline.
// Each step fills in the part it owns.
type Run struct {
	// Path is the file under analysis.
	Path string

	// Started is when the run began.
	Started time.Time

	// Asset is filled in by the inspect step.
	Asset model.MediaAsset

	// Results holds one result per channel in canonical order once the
	// channel step has finished.
	Results []model.ChannelResult

	// Report is the aggregated report, set by the aggregate step.
	Report *model.AnalysisReport

	// PerformedSteps lists the steps that completed, in order.
	PerformedSteps []string
}

// NewRun creates the state for analyzing path.
func NewRun(path string, started time.Time) *Run {
	return &Run{Path: path, Started: started}
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the run state built by the
// steps before it.
type Step interface {
	// Do executes the step. A returned error stops the pipeline; channel
	// failures are recorded in the run instead.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and stops at the first error.
// Cancellation is checked before every step and reported as ErrCancelled.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"file", run.Path,
				"reason", err,
			)
			return fmt.Errorf("%w: %w", model.ErrCancelled, err)
		}

		p.logger.Debug("executing step", "step", step.Name(), "file", run.Path)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"file", run.Path,
				"error", err,
			)
			return err
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
