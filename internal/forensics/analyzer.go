package forensics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
)

// ChannelAnalyzer turns one evidence channel of an asset into a ChannelResult.
//
// Analyze never returns an error: decoder and tool failures become Failed
// results and missing streams become NotApplicable results, so one channel
// cannot abort its siblings. Callers detect cancellation through ctx.
type ChannelAnalyzer interface {
	// Channel returns the evidence channel the analyzer covers.
	Channel() model.Channel

	// Analyze extracts features from asset and applies the channel rules.
	Analyze(ctx context.Context, asset model.MediaAsset) model.ChannelResult
}

// Sources bundles the feature sources the built-in analyzers read from.
type Sources struct {
	Audio    media.AudioSource
	Video    media.VideoSource
	Metadata media.MetadataSource
}

// Suite holds one analyzer per channel.
type Suite struct {
	analyzers map[model.Channel]ChannelAnalyzer
	logger    *slog.Logger
}

// NewSuite creates a suite with the built-in audio, video and metadata
// analyzers registered. A nil source leaves its channel unregistered.
func NewSuite(cfg config.Analysis, sources Sources, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Suite{
		analyzers: make(map[model.Channel]ChannelAnalyzer, len(model.Channels())),
		logger:    logger,
	}
	if sources.Audio != nil {
		s.Register(NewAudioAnalyzer(sources.Audio, cfg.Audio, config.WorkerCount()))
	}
	if sources.Video != nil {
		s.Register(NewVideoAnalyzer(sources.Video, cfg.Video))
	}
	if sources.Metadata != nil {
		s.Register(NewMetadataAnalyzer(sources.Metadata, cfg.Metadata))
	}
	return s
}

// Register adds or replaces the analyzer of its channel.
func (s *Suite) Register(analyzer ChannelAnalyzer) {
	s.analyzers[analyzer.Channel()] = analyzer
}

// Get returns the analyzer of ch.
func (s *Suite) Get(ch model.Channel) (ChannelAnalyzer, bool) {
	a, ok := s.analyzers[ch]
	return a, ok
}

// Run analyzes one channel. A channel without a registered analyzer fails
// with ErrExternalToolUnavailable.
func (s *Suite) Run(ctx context.Context, ch model.Channel, asset model.MediaAsset) model.ChannelResult {
	analyzer, ok := s.analyzers[ch]
	if !ok {
		return model.Failed(ch, model.NewChannelError(ch, model.ErrExternalToolUnavailable, errors.New("no analyzer registered")))
	}

	result := analyzer.Analyze(ctx, asset)
	switch result.Status {
	case model.StatusFailed:
		s.logger.Warn("channel failed",
			"channel", ch.String(),
			"file", asset.Name(),
			"error_kind", result.ErrorKind,
			"error", result.Err(),
		)
	case model.StatusNotApplicable:
		s.logger.Debug("channel not applicable", "channel", ch.String(), "file", asset.Name(), "reason", result.Reason)
	default:
		s.logger.Debug("channel analyzed",
			"channel", ch.String(),
			"file", asset.Name(),
			"units", result.Units,
			"anomalies", len(result.Anomalies),
		)
	}
	return result
}

// resultFromError maps a source error onto a channel result. noStream is the
// not-applicable reason used when the asset lacks the stream; an empty
// reason turns a missing stream into a decode failure.
func resultFromError(ctx context.Context, ch model.Channel, err error, noStream string) model.ChannelResult {
	switch {
	case ctx.Err() != nil, errors.Is(err, model.ErrCancelled):
		return model.Failed(ch, model.NewChannelError(ch, model.ErrCancelled, err))
	case errors.Is(err, media.ErrNoStream) && noStream != "":
		return model.NotApplicable(ch, noStream)
	case errors.Is(err, model.ErrExternalToolUnavailable):
		return model.Failed(ch, model.NewChannelError(ch, model.ErrExternalToolUnavailable, err))
	default:
		return model.Failed(ch, model.NewChannelError(ch, model.ErrDecodeFailure, err))
	}
}
