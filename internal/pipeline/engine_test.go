package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/forensics"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
)

func newTestEngine(prober media.Prober, sources forensics.Sources, opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithEngineLogger(discard),
		WithProber(prober),
		WithSources(sources),
		WithClock(fixedNow),
	}
	return NewEngine(config.DefaultAnalysis(), append(base, opts...)...)
}

// TestEngineAnalyze tests end-to-end analysis with fake feature sources.
func TestEngineAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("checkerboard video", func(t *testing.T) {
		t.Parallel()

		frames := sampledFrames(30, 0)
		for _, i := range []int{5, 15, 25} {
			frames[i].Checkerboard = 0.87
		}
		audio := &fakeAudio{}
		engine := newTestEngine(fakeProber{result: videoProbe()}, forensics.Sources{
			Audio:    audio,
			Video:    &fakeVideo{frames: frames},
			Metadata: &fakeMetadata{tags: cameraTags()},
		})

		report, err := engine.Analyze(t.Context(), writeMedia(t, "clip.mp4"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := 0.45 / 0.65 * 0.8
		if math.Abs(report.ConfidenceScore-want) > 1e-9 {
			t.Errorf("confidence = %v, want %v", report.ConfidenceScore, want)
		}
		if !report.IsLikelySynthetic {
			t.Error("expected synthetic verdict")
		}
		if a, _ := report.Channel(model.ChannelAudio); a.Status != model.StatusNotApplicable {
			t.Errorf("audio should be not applicable for a silent video, got %s", a.Status)
		}
		if audio.calls.Load() != 0 {
			t.Error("audio source must not run for a video without audio")
		}
		if report.Asset.Width != 1280 || report.Asset.Fingerprint == "" {
			t.Errorf("asset not described: %+v", report.Asset)
		}
		if !report.AnalyzedAt.Equal(fixedNow()) || report.ElapsedMS != 0 {
			t.Errorf("unexpected timing: %v %d", report.AnalyzedAt, report.ElapsedMS)
		}
	})

	t.Run("audio-only with failed metadata", func(t *testing.T) {
		t.Parallel()

		engine := newTestEngine(fakeProber{result: audioProbe()}, forensics.Sources{
			Audio:    &fakeAudio{windows: variedWindows(12)},
			Video:    &fakeVideo{},
			Metadata: &fakeMetadata{err: fmt.Errorf("ffprobe: %w", model.ErrExternalToolUnavailable)},
		})

		report, err := engine.Analyze(t.Context(), writeMedia(t, "voice.wav"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.ConfidenceScore != 0 || report.IsLikelySynthetic {
			t.Errorf("expected zero confidence, got %v", report.ConfidenceScore)
		}

		audio, _ := report.Channel(model.ChannelAudio)
		video, _ := report.Channel(model.ChannelVideo)
		meta, _ := report.Channel(model.ChannelMetadata)
		if audio.Status != model.StatusSucceeded || len(audio.Anomalies) != 0 {
			t.Errorf("unexpected audio result: %+v", audio)
		}
		if video.Status != model.StatusNotApplicable || video.Reason != model.ReasonNoVideo {
			t.Errorf("unexpected video result: %+v", video)
		}
		if meta.Status != model.StatusFailed || meta.ErrorKind != model.ErrorKindToolUnavailable {
			t.Errorf("unexpected metadata result: %+v", meta)
		}
	})

	t.Run("all channels fail", func(t *testing.T) {
		t.Parallel()

		decodeErr := fmt.Errorf("ffmpeg: %w", model.ErrDecodeFailure)
		engine := newTestEngine(fakeProber{err: fmt.Errorf("ffprobe: %w", model.ErrDecodeFailure)}, forensics.Sources{
			Audio:    &fakeAudio{err: decodeErr},
			Video:    &fakeVideo{err: decodeErr},
			Metadata: &fakeMetadata{err: fmt.Errorf("ffprobe: %w", model.ErrExternalToolUnavailable)},
		})

		path := writeMedia(t, "broken.mp4")
		report, err := engine.Analyze(t.Context(), path)
		if !errors.Is(err, model.ErrNoEvidenceAvailable) {
			t.Fatalf("expected ErrNoEvidenceAvailable, got %v", err)
		}
		if report != nil {
			t.Error("no report may be returned without evidence")
		}

		run, err := engine.Execute(t.Context(), path)
		if !errors.Is(err, model.ErrNoEvidenceAvailable) || len(run.Results) != 3 {
			t.Errorf("expected channel results to survive, got %v %+v", err, run.Results)
		}
	})

	t.Run("cancellation mid-run", func(t *testing.T) {
		t.Parallel()

		audio := &blockingAudio{started: make(chan struct{})}
		engine := newTestEngine(fakeProber{result: audioProbe()}, forensics.Sources{
			Audio:    audio,
			Video:    &fakeVideo{},
			Metadata: &fakeMetadata{tags: cameraTags()},
		})

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		go func() {
			<-audio.started
			cancel()
		}()

		report, err := engine.Analyze(ctx, writeMedia(t, "voice.wav"))
		if !errors.Is(err, model.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
		if report != nil {
			t.Error("no report may be delivered after cancellation")
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		t.Parallel()

		engine := newTestEngine(fakeProber{}, forensics.Sources{})
		if _, err := engine.Analyze(t.Context(), writeMedia(t, "slides.pdf")); !errors.Is(err, model.ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("channel selection", func(t *testing.T) {
		t.Parallel()

		audio := &fakeAudio{windows: variedWindows(12)}
		engine := newTestEngine(fakeProber{result: audioProbe()}, forensics.Sources{
			Audio:    audio,
			Metadata: &fakeMetadata{tags: map[string]string{"comment": "made with ElevenLabs"}},
		}, WithChannels([]model.Channel{model.ChannelMetadata}))

		report, err := engine.Analyze(t.Context(), writeMedia(t, "voice.mp3"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if audio.calls.Load() != 0 {
			t.Error("unselected audio channel must not run")
		}
		if got := report.AvailableChannels(); len(got) != 1 || got[0] != model.ChannelMetadata {
			t.Errorf("expected only metadata, got %v", got)
		}
		if report.EffectiveWeights[model.ChannelMetadata] != 1 {
			t.Errorf("metadata should carry the full weight: %v", report.EffectiveWeights)
		}
	})

	t.Run("custom analyzer replaces a channel", func(t *testing.T) {
		t.Parallel()

		custom := &stubAnalyzer{
			ch:     model.ChannelAudio,
			result: model.Succeeded(model.ChannelAudio, []model.Anomaly{model.NewAnomaly(model.KindSpectralFlatness, 0, 0.5, "")}, 1, nil),
		}
		engine := newTestEngine(fakeProber{result: audioProbe()}, forensics.Sources{},
			WithAnalyzer(custom),
			WithChannels([]model.Channel{model.ChannelAudio}),
		)
		report, err := engine.Analyze(t.Context(), writeMedia(t, "voice.flac"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.ConfidenceScore != 0.5 || !report.IsLikelySynthetic {
			t.Errorf("expected inclusive 0.5 verdict, got %v %v", report.ConfidenceScore, report.IsLikelySynthetic)
		}
	})
}

// TestEngineConfig tests that the engine keeps its own copy of the settings.
func TestEngineConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultAnalysis()
	engine := NewEngine(cfg, WithEngineLogger(discard), WithProber(fakeProber{}), WithSources(forensics.Sources{}))
	cfg.Scoring.Threshold = 0.9
	cfg.Scoring.ChannelWeights[model.ChannelAudio] = 0

	got := engine.Config()
	if got.Scoring.Threshold != 0.5 || got.Scoring.ChannelWeights[model.ChannelAudio] != 0.35 {
		t.Errorf("engine observed caller changes: %+v", got.Scoring)
	}
	if names := engine.Pipeline().StepNames(); len(names) != 3 || names[0] != "inspect" || names[2] != "aggregate" {
		t.Errorf("unexpected steps: %v", names)
	}
}
