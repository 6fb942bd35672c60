package config

import (
	"fmt"
	"maps"
	"math"
	"runtime"
	"slices"

	"github.com/nao1215/deepcheck/internal/model"
)

// Analysis holds every tunable of the channel analyzers and the aggregator.
// It is passed by value; Clone returns a copy that shares no maps or slices
// with the receiver.
type Analysis struct {
	Scoring  Scoring  `yaml:"scoring"`
	Audio    Audio    `yaml:"audio"`
	Video    Video    `yaml:"video"`
	Metadata Metadata `yaml:"metadata"`
	Tools    Tools    `yaml:"tools"`

	// Concurrency limits how many channel analyzers run at once for one file.
	Concurrency int `yaml:"concurrency"`
}

// Scoring configures the evidence aggregator.
type Scoring struct {
	// Threshold is the inclusive verdict cut-off on the confidence score.
	Threshold float64 `yaml:"threshold"`

	// ChannelWeights are the configured channel weights before redistribution.
	ChannelWeights map[model.Channel]float64 `yaml:"channel_weights"`

	// KindWeights override the catalog weight of individual anomaly kinds.
	KindWeights map[model.AnomalyKind]float64 `yaml:"kind_weights"`
}

// Audio configures decoding and the audio rules.
type Audio struct {
	SampleRate            int     `yaml:"sample_rate"`
	WindowSize            int     `yaml:"window_size"`
	RollingWindows        int     `yaml:"rolling_windows"`
	SilenceFloor          float64 `yaml:"silence_floor"`
	CentroidStdFloor      float64 `yaml:"centroid_std_floor"`
	RolloffStdFloor       float64 `yaml:"rolloff_std_floor"`
	RolloffNyquistRatio   float64 `yaml:"rolloff_nyquist_ratio"`
	ZCRStdFloor           float64 `yaml:"zcr_std_floor"`
	EnergyCVFloor         float64 `yaml:"energy_cv_floor"`
	OnsetSensitivity      float64 `yaml:"onset_sensitivity"`
	MinOnsets             int     `yaml:"min_onsets"`
	OnsetIntervalStdFloor float64 `yaml:"onset_interval_std_floor"`
	EnergyJumpRatio       float64 `yaml:"energy_jump_ratio"`
	KurtosisBound         float64 `yaml:"kurtosis_bound"`
	SkewnessBound         float64 `yaml:"skewness_bound"`
}

// Video configures frame sampling and the video rules.
type Video struct {
	SampleFrames          int     `yaml:"sample_frames"`
	FrameWidth            int     `yaml:"frame_width"`
	SharpnessStdFloor     float64 `yaml:"sharpness_std_floor"`
	SharpnessUniformMean  float64 `yaml:"sharpness_uniform_mean"`
	LowSharpnessMean      float64 `yaml:"low_sharpness_mean"`
	DeltaStdFloor         float64 `yaml:"delta_std_floor"`
	DeltaMovingMean       float64 `yaml:"delta_moving_mean"`
	SpliceRatio           float64 `yaml:"splice_ratio"`
	SpliceRadius          int     `yaml:"splice_radius"`
	ChannelImbalance      float64 `yaml:"channel_imbalance"`
	ColorStdFloor         float64 `yaml:"color_std_floor"`
	SaturationLow         float64 `yaml:"saturation_low"`
	SaturationHigh        float64 `yaml:"saturation_high"`
	CheckerboardThreshold float64 `yaml:"checkerboard_threshold"`
	EdgeStdFloor          float64 `yaml:"edge_std_floor"`
	NoiseFloor            float64 `yaml:"noise_floor"`
}

// Metadata configures the metadata rules.
type Metadata struct {
	// Severities are the fixed severities of each metadata rule.
	Severities map[model.AnomalyKind]float64 `yaml:"severities"`

	// GeneratorSignatures are lower-case substrings that identify generative tools.
	GeneratorSignatures []string `yaml:"generator_signatures"`

	// TranscoderSignatures are lower-case encoder prefixes of re-encoding tools.
	TranscoderSignatures []string `yaml:"transcoder_signatures"`

	// MinTags is the minimum number of descriptive tags expected from a capture device.
	MinTags int `yaml:"min_tags"`

	// EarliestYear is the oldest plausible creation year.
	EarliestYear int `yaml:"earliest_year"`

	// ExifScanBytes bounds how much of the file head is searched for EXIF.
	ExifScanBytes int `yaml:"exif_scan_bytes"`
}

// Tools names the external binaries used for decoding and probing.
type Tools struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

// DefaultAnalysis returns the built-in analysis settings.
// Rule thresholds follow the forensic heuristics the tool has always used;
// weights come from the anomaly kind catalog.
func DefaultAnalysis() Analysis {
	return Analysis{
		Scoring: Scoring{
			Threshold: 0.5,
			ChannelWeights: map[model.Channel]float64{
				model.ChannelAudio:    0.35,
				model.ChannelVideo:    0.45,
				model.ChannelMetadata: 0.20,
			},
			KindWeights: model.DefaultKindWeights(),
		},
		Audio: Audio{
			SampleRate:            22050,
			WindowSize:            2048,
			RollingWindows:        8,
			SilenceFloor:          0.001,
			CentroidStdFloor:      500,
			RolloffStdFloor:       400,
			RolloffNyquistRatio:   0.9,
			ZCRStdFloor:           0.01,
			EnergyCVFloor:         0.1,
			OnsetSensitivity:      1.5,
			MinOnsets:             4,
			OnsetIntervalStdFloor: 2,
			EnergyJumpRatio:       10,
			KurtosisBound:         1,
			SkewnessBound:         2,
		},
		Video: Video{
			SampleFrames:          30,
			FrameWidth:            320,
			SharpnessStdFloor:     10,
			SharpnessUniformMean:  50,
			LowSharpnessMean:      30,
			DeltaStdFloor:         1,
			DeltaMovingMean:       5,
			SpliceRatio:           5,
			SpliceRadius:          3,
			ChannelImbalance:      30,
			ColorStdFloor:         20,
			SaturationLow:         0.02,
			SaturationHigh:        0.7,
			CheckerboardThreshold: 0.35,
			EdgeStdFloor:          0.001,
			NoiseFloor:            1.5,
		},
		Metadata: Metadata{
			Severities: map[model.AnomalyKind]float64{
				model.KindMissingHardwareSignature: 0.4,
				model.KindSynthesisToolSignature:   0.9,
				model.KindReencodeSignature:        0.2,
				model.KindQuantizationTable:        0.3,
				model.KindCreationTimeAnomaly:      0.3,
				model.KindSparseMetadata:           0.25,
			},
			GeneratorSignatures: []string{
				"stable diffusion", "midjourney", "dall-e", "runway", "sora", "pika",
				"deepfacelab", "faceswap", "synthesia", "heygen", "d-id", "elevenlabs",
				"comfyui", "automatic1111", "invokeai", "kling", "luma", "gen-2",
			},
			TranscoderSignatures: []string{
				"lavf", "lavc", "handbrake", "x264", "x265", "libvpx", "ffmpeg",
			},
			MinTags:       3,
			EarliestYear:  1990,
			ExifScanBytes: 4 << 20,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Concurrency: 3,
	}
}

// Clone returns a deep copy of a.
func (a Analysis) Clone() Analysis {
	out := a
	out.Scoring.ChannelWeights = maps.Clone(a.Scoring.ChannelWeights)
	out.Scoring.KindWeights = maps.Clone(a.Scoring.KindWeights)
	out.Metadata.Severities = maps.Clone(a.Metadata.Severities)
	out.Metadata.GeneratorSignatures = slices.Clone(a.Metadata.GeneratorSignatures)
	out.Metadata.TranscoderSignatures = slices.Clone(a.Metadata.TranscoderSignatures)
	return out
}

// KindWeight returns the configured weight of kind, falling back to the catalog default.
func (s Scoring) KindWeight(kind model.AnomalyKind) float64 {
	if w, ok := s.KindWeights[kind]; ok {
		return w
	}
	info, _ := model.GetKindInfo(kind)
	return info.DefaultWeight
}

// Severity returns the configured severity of a metadata rule.
func (m Metadata) Severity(kind model.AnomalyKind) float64 {
	return m.Severities[kind]
}

// WorkerCount returns the number of workers for per-window feature extraction.
func WorkerCount() int {
	return max(1, runtime.NumCPU())
}

// Validate checks the analysis settings.
func (a Analysis) Validate() error {
	if math.IsNaN(a.Scoring.Threshold) || a.Scoring.Threshold < 0 || a.Scoring.Threshold > 1 {
		return ErrInvalidThreshold
	}

	for ch, w := range a.Scoring.ChannelWeights {
		if !ch.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
		if !validWeight(w) {
			return fmt.Errorf("%w: channel %s = %v", ErrInvalidWeight, ch, w)
		}
	}

	for kind, w := range a.Scoring.KindWeights {
		if !kind.Known() {
			return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
		if !validWeight(w) {
			return fmt.Errorf("%w: kind %s = %v", ErrInvalidWeight, kind, w)
		}
	}

	for kind, s := range a.Metadata.Severities {
		if kind.Channel() != model.ChannelMetadata {
			return fmt.Errorf("%w: %q is not a metadata rule", ErrUnknownKind, kind)
		}
		if math.IsNaN(s) || s < 0 || s > 1 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidSeverity, kind, s)
		}
	}

	if a.Audio.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}

	if a.Audio.WindowSize < 256 || a.Audio.WindowSize&(a.Audio.WindowSize-1) != 0 {
		return ErrInvalidWindowSize
	}

	if a.Video.SampleFrames < 2 {
		return ErrInvalidSampleFrames
	}

	lo, hi := a.Video.SaturationLow, a.Video.SaturationHigh
	if math.IsNaN(lo) || math.IsNaN(hi) || lo < 0 || hi > 1 || lo >= hi {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidSaturationBand, lo, hi)
	}

	if a.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return nil
}

func validWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0
}

// ParseChannels converts --only values into channels. An empty input selects
// every channel.
func ParseChannels(names []string) ([]model.Channel, error) {
	if len(names) == 0 {
		return model.Channels(), nil
	}
	out := make([]model.Channel, 0, len(names))
	for _, n := range names {
		ch, ok := model.ParseChannel(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, n)
		}
		if !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out, nil
}
