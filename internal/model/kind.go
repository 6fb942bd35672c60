package model

import "sort"

// AnomalyKind identifies the rule family that produced an anomaly.
type AnomalyKind string

// Audio anomaly kinds.
const (
	KindSpectralFlatness       AnomalyKind = "spectral-flatness"
	KindZeroCrossingUniformity AnomalyKind = "zero-crossing-uniformity"
	KindTemporalUniformity     AnomalyKind = "temporal-uniformity"
	KindTemporalDiscontinuity  AnomalyKind = "temporal-discontinuity"
	KindAmplitudeKurtosis      AnomalyKind = "amplitude-kurtosis"
	KindAmplitudeSkewness      AnomalyKind = "amplitude-skewness"
)

// Video anomaly kinds.
const (
	KindSharpnessUniformity  AnomalyKind = "sharpness-uniformity"
	KindLowSharpness         AnomalyKind = "low-sharpness"
	KindFrameDeltaUniformity AnomalyKind = "frame-delta-uniformity"
	KindFrameSplice          AnomalyKind = "frame-splice"
	KindColorHistogramSkew   AnomalyKind = "color-histogram-skew"
	KindEdgeCheckerboard     AnomalyKind = "edge-checkerboard"
	KindEdgeUniformity       AnomalyKind = "edge-uniformity"
	KindNoiseResidualDeficit AnomalyKind = "noise-residual-deficit"
)

// Metadata anomaly kinds.
const (
	KindMissingHardwareSignature AnomalyKind = "missing-hardware-signature"
	KindSynthesisToolSignature   AnomalyKind = "synthesis-tool-signature"
	KindReencodeSignature        AnomalyKind = "reencode-signature"
	KindQuantizationTable        AnomalyKind = "quantization-table-anomaly"
	KindCreationTimeAnomaly      AnomalyKind = "creation-time-anomaly"
	KindSparseMetadata           AnomalyKind = "sparse-metadata"
)

// Scope describes the granularity at which a kind is reported.
type Scope int

const (
	// ScopeWindow kinds are reported per audio window or video frame.
	ScopeWindow Scope = iota

	// ScopeSequence kinds summarize a whole stream and carry index -1.
	ScopeSequence

	// ScopeFile kinds describe the container and carry index -1.
	ScopeFile
)

// KindInfo contains catalog metadata about an anomaly kind.
type KindInfo struct {
	Channel       Channel
	Scope         Scope
	Title         string
	Description   string
	DefaultWeight float64
}

// kindInfoMapping is the single catalog of anomaly kinds.
// Weights here are the defaults; configuration may override them per kind.
var kindInfoMapping = map[AnomalyKind]KindInfo{
	// Audio
	KindSpectralFlatness: {
		Channel:       ChannelAudio,
		Scope:         ScopeWindow,
		Title:         "Spectral flatness",
		Description:   "Spectral centroid or rolloff varies less than natural speech and music do, or rolloff is pinned near Nyquist.",
		DefaultWeight: 1.0,
	},
	KindZeroCrossingUniformity: {
		Channel:       ChannelAudio,
		Scope:         ScopeWindow,
		Title:         "Zero-crossing uniformity",
		Description:   "Zero-crossing rate is nearly constant across consecutive windows.",
		DefaultWeight: 0.6,
	},
	KindTemporalUniformity: {
		Channel:       ChannelAudio,
		Scope:         ScopeWindow,
		Title:         "Temporal uniformity",
		Description:   "Onset spacing or short-term energy is too regular for natural audio.",
		DefaultWeight: 0.8,
	},
	KindTemporalDiscontinuity: {
		Channel:       ChannelAudio,
		Scope:         ScopeWindow,
		Title:         "Temporal discontinuity",
		Description:   "Abrupt energy jump between adjacent windows, typical of spliced segments.",
		DefaultWeight: 0.9,
	},
	KindAmplitudeKurtosis: {
		Channel:       ChannelAudio,
		Scope:         ScopeWindow,
		Title:         "Amplitude kurtosis",
		Description:   "Amplitude distribution is close to Gaussian, unlike the heavy tails of natural recordings.",
		DefaultWeight: 0.7,
	},
	KindAmplitudeSkewness: {
		Channel:       ChannelAudio,
		Scope:         ScopeWindow,
		Title:         "Amplitude skewness",
		Description:   "Amplitude distribution is strongly asymmetric.",
		DefaultWeight: 0.5,
	},

	// Video
	KindSharpnessUniformity: {
		Channel:       ChannelVideo,
		Scope:         ScopeSequence,
		Title:         "Sharpness uniformity",
		Description:   "Frames are consistently sharp with almost no variation across the sequence.",
		DefaultWeight: 0.8,
	},
	KindLowSharpness: {
		Channel:       ChannelVideo,
		Scope:         ScopeSequence,
		Title:         "Low sharpness",
		Description:   "Frames are unusually soft on average.",
		DefaultWeight: 0.4,
	},
	KindFrameDeltaUniformity: {
		Channel:       ChannelVideo,
		Scope:         ScopeSequence,
		Title:         "Frame delta uniformity",
		Description:   "Inter-frame motion is nearly constant while the scene is moving.",
		DefaultWeight: 0.8,
	},
	KindFrameSplice: {
		Channel:       ChannelVideo,
		Scope:         ScopeWindow,
		Title:         "Frame splice",
		Description:   "Inter-frame difference spikes far above the local median.",
		DefaultWeight: 1.0,
	},
	KindColorHistogramSkew: {
		Channel:       ChannelVideo,
		Scope:         ScopeWindow,
		Title:         "Color histogram skew",
		Description:   "Color channels are imbalanced or clustered into a narrow range.",
		DefaultWeight: 0.6,
	},
	KindEdgeCheckerboard: {
		Channel:       ChannelVideo,
		Scope:         ScopeWindow,
		Title:         "Edge checkerboard",
		Description:   "Periodic two-pixel gradient pattern typical of upsampling layers.",
		DefaultWeight: 1.0,
	},
	KindEdgeUniformity: {
		Channel:       ChannelVideo,
		Scope:         ScopeSequence,
		Title:         "Edge uniformity",
		Description:   "Edge density barely changes across the sequence.",
		DefaultWeight: 0.5,
	},
	KindNoiseResidualDeficit: {
		Channel:       ChannelVideo,
		Scope:         ScopeWindow,
		Title:         "Noise residual deficit",
		Description:   "Sensor noise residual is below the floor expected from a camera.",
		DefaultWeight: 0.9,
	},

	// Metadata
	KindMissingHardwareSignature: {
		Channel:       ChannelMetadata,
		Scope:         ScopeFile,
		Title:         "Missing hardware signature",
		Description:   "No capture device make or model is recorded.",
		DefaultWeight: 0.6,
	},
	KindSynthesisToolSignature: {
		Channel:       ChannelMetadata,
		Scope:         ScopeFile,
		Title:         "Synthesis tool signature",
		Description:   "Metadata names a known generative or face-swap tool.",
		DefaultWeight: 1.0,
	},
	KindReencodeSignature: {
		Channel:       ChannelMetadata,
		Scope:         ScopeFile,
		Title:         "Re-encode signature",
		Description:   "Encoder tag points to a transcoding tool rather than a capture device.",
		DefaultWeight: 0.3,
	},
	KindQuantizationTable: {
		Channel:       ChannelMetadata,
		Scope:         ScopeFile,
		Title:         "Quantization table anomaly",
		Description:   "Encoder settings carry a custom quantization matrix.",
		DefaultWeight: 0.5,
	},
	KindCreationTimeAnomaly: {
		Channel:       ChannelMetadata,
		Scope:         ScopeFile,
		Title:         "Creation time anomaly",
		Description:   "Creation timestamp is unparsable, in the future or implausibly old.",
		DefaultWeight: 0.5,
	},
	KindSparseMetadata: {
		Channel:       ChannelMetadata,
		Scope:         ScopeFile,
		Title:         "Sparse metadata",
		Description:   "Container carries almost no descriptive tags.",
		DefaultWeight: 0.4,
	},
}

// GetKindInfo returns catalog metadata for kind.
func GetKindInfo(kind AnomalyKind) (KindInfo, bool) {
	info, ok := kindInfoMapping[kind]
	return info, ok
}

// Channel returns the channel the kind belongs to, or "" when unknown.
func (k AnomalyKind) Channel() Channel {
	return kindInfoMapping[k].Channel
}

// Title returns the human-readable title of the kind, falling back to the raw name.
func (k AnomalyKind) Title() string {
	if info, ok := kindInfoMapping[k]; ok {
		return info.Title
	}
	return string(k)
}

// Known reports whether the kind is in the catalog.
func (k AnomalyKind) Known() bool {
	_, ok := kindInfoMapping[k]
	return ok
}

// AllKinds returns every catalogued kind sorted by name.
func AllKinds() []AnomalyKind {
	kinds := make([]AnomalyKind, 0, len(kindInfoMapping))
	for k := range kindInfoMapping {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// KindsFor returns the kinds of one channel sorted by name.
func KindsFor(ch Channel) []AnomalyKind {
	var kinds []AnomalyKind
	for _, k := range AllKinds() {
		if kindInfoMapping[k].Channel == ch {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// DefaultKindWeights returns a fresh copy of the catalog's default weights.
func DefaultKindWeights() map[AnomalyKind]float64 {
	weights := make(map[AnomalyKind]float64, len(kindInfoMapping))
	for k, info := range kindInfoMapping {
		weights[k] = info.DefaultWeight
	}
	return weights
}
