package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/forensics"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/scoring"
)

// Engine analyzes media files end to end: inspect, run the channel
// analyzers concurrently, aggregate. It is safe for concurrent use.
type Engine struct {
	cfg        config.Analysis
	logger     *slog.Logger
	prober     media.Prober
	sources    *forensics.Sources
	analyzers  []forensics.ChannelAnalyzer
	selected   []model.Channel
	now        func() time.Time
	suite      *forensics.Suite
	aggregator *scoring.Aggregator
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used by the engine and its analyzers.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProber replaces the ffprobe-based prober.
func WithProber(prober media.Prober) EngineOption {
	return func(e *Engine) {
		e.prober = prober
	}
}

// WithSources replaces the ffmpeg-based feature sources.
func WithSources(sources forensics.Sources) EngineOption {
	return func(e *Engine) {
		e.sources = &sources
	}
}

// WithAnalyzer registers an analyzer that replaces the built-in one of its channel.
func WithAnalyzer(analyzer forensics.ChannelAnalyzer) EngineOption {
	return func(e *Engine) {
		e.analyzers = append(e.analyzers, analyzer)
	}
}

// WithChannels restricts analysis to the given channels.
func WithChannels(channels []model.Channel) EngineOption {
	return func(e *Engine) {
		e.selected = channels
	}
}

// WithClock sets the time source for timestamps and elapsed time.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine for the given analysis settings. cfg is
// cloned, so later changes by the caller are not observed.
func NewEngine(cfg config.Analysis, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg: cfg.Clone(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.prober == nil {
		e.prober = media.NewFFprobe(e.cfg.Tools.FFprobe)
	}
	if e.sources == nil {
		workers := config.WorkerCount()
		e.sources = &forensics.Sources{
			Audio:    media.NewFFmpegAudio(e.cfg.Tools.FFmpeg, e.cfg.Audio.SampleRate, e.cfg.Audio.WindowSize, workers),
			Video:    media.NewFFmpegVideo(e.cfg.Tools.FFmpeg, e.cfg.Video.SampleFrames, e.cfg.Video.FrameWidth, workers),
			Metadata: media.NewProbeMetadata(e.prober, e.cfg.Metadata.ExifScanBytes, e.logger),
		}
	}

	e.suite = forensics.NewSuite(e.cfg, *e.sources, e.logger)
	for _, a := range e.analyzers {
		e.suite.Register(a)
	}
	e.aggregator = scoring.NewAggregator(e.cfg.Scoring, scoring.WithClock(e.now))
	return e
}

// Config returns a copy of the engine's analysis settings.
func (e *Engine) Config() config.Analysis {
	return e.cfg.Clone()
}

// Pipeline builds the step sequence for one file.
func (e *Engine) Pipeline() *Pipeline {
	p := New(WithLogger(e.logger))
	p.AddSteps(
		NewInspectStep(e.prober, e.logger),
		NewChannelStep(e.suite, e.selected, e.cfg.Concurrency),
		NewAggregateStep(e.aggregator, e.now),
	)
	return p
}

// Analyze runs the full analysis of path.
//
// It returns ErrUnsupportedFormat for files that are not accepted,
// ErrNoEvidenceAvailable when no channel produced evidence and ErrCancelled
// when ctx ends before the channels finish. In every error case the report
// is nil.
func (e *Engine) Analyze(ctx context.Context, path string) (*model.AnalysisReport, error) {
	run, err := e.Execute(ctx, path)
	if err != nil {
		return nil, err
	}
	return run.Report, nil
}

// Execute runs the pipeline and returns the run state, which keeps the
// channel results even when aggregation fails.
func (e *Engine) Execute(ctx context.Context, path string) (*Run, error) {
	run := NewRun(path, e.now())
	if err := e.Pipeline().Execute(ctx, run); err != nil {
		e.logger.Debug("analysis ended without report", "file", path, "error", err)
		return run, err
	}
	e.logger.Info("analysis completed",
		"file", run.Asset.Name(),
		"confidence", run.Report.ConfidenceScore,
		"verdict", run.Report.Verdict(),
		"elapsed_ms", run.Report.ElapsedMS,
	)
	return run, nil
}
