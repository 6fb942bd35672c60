package model

// AudioWindow holds the descriptors of one fixed-length slice of decoded audio.
// Windows are produced by an extractor and consumed by the audio analyzer;
// they are never persisted.
type AudioWindow struct {
	// Index is the zero-based position of the window in the stream.
	Index int

	// StartSeconds is the offset of the first sample.
	StartSeconds float64

	// SampleRate is the decode rate in Hz.
	SampleRate int

	// Samples holds the mono amplitude samples in [-1, 1].
	Samples []float64

	// Centroid is the spectral centroid in Hz.
	Centroid float64

	// Rolloff is the frequency below which 85% of spectral energy lies, in Hz.
	Rolloff float64

	// ZeroCrossingRate is the fraction of adjacent samples that change sign.
	ZeroCrossingRate float64

	// Energy is the RMS amplitude of the window.
	Energy float64

	// OnsetStrength is the positive spectral flux relative to the previous window.
	OnsetStrength float64
}

// Nyquist returns half the sample rate.
func (w AudioWindow) Nyquist() float64 {
	return float64(w.SampleRate) / 2
}

// VideoFrame holds the descriptors of one sampled, decoded video frame.
type VideoFrame struct {
	// Index is the zero-based position of the frame among the sampled frames.
	Index int

	// Timestamp is the presentation time in seconds.
	Timestamp float64

	// Sharpness is the variance of the Laplacian of the luma plane.
	Sharpness float64

	// Delta is the mean absolute luma difference to the previous sampled frame.
	// It is zero for the first frame.
	Delta float64

	// ChannelMeans holds the mean R, G and B levels (0-255).
	ChannelMeans [3]float64

	// ChannelStds holds the standard deviation of R, G and B levels.
	ChannelStds [3]float64

	// ColorStd is the standard deviation over all color samples of the frame.
	ColorStd float64

	// Saturation is the mean HSV saturation (0-1).
	Saturation float64

	// EdgeDensity is the fraction of pixels whose gradient magnitude exceeds the edge threshold.
	EdgeDensity float64

	// NoiseResidual is the standard deviation of the luma minus its 3x3 box-filtered copy.
	NoiseResidual float64

	// Checkerboard is the share of gradient energy at the two-pixel period
	// typical of transposed-convolution upsampling (0-1).
	Checkerboard float64
}
