package forensics

import (
	"context"
	"fmt"
	"math"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
)

// VideoAnalyzer applies the quality, temporal, color and edge/noise rules to
// sampled frame descriptors.
type VideoAnalyzer struct {
	source media.VideoSource
	cfg    config.Video
}

// NewVideoAnalyzer creates a video analyzer.
func NewVideoAnalyzer(source media.VideoSource, cfg config.Video) *VideoAnalyzer {
	return &VideoAnalyzer{source: source, cfg: cfg}
}

// Channel implements ChannelAnalyzer.
func (v *VideoAnalyzer) Channel() model.Channel {
	return model.ChannelVideo
}

// Analyze implements ChannelAnalyzer.
func (v *VideoAnalyzer) Analyze(ctx context.Context, asset model.MediaAsset) model.ChannelResult {
	if !asset.Kind.HasVideo() {
		return model.NotApplicable(model.ChannelVideo, model.ReasonNoVideo)
	}
	frames, err := v.source.VideoFrames(ctx, asset)
	if err != nil {
		return resultFromError(ctx, model.ChannelVideo, err, model.ReasonNoVideo)
	}
	return v.Evaluate(frames)
}

// Evaluate applies the video rules to frames ordered by index.
func (v *VideoAnalyzer) Evaluate(frames []model.VideoFrame) model.ChannelResult {
	if len(frames) == 0 {
		return model.NotApplicable(model.ChannelVideo, model.ReasonNoVideo)
	}

	n := len(frames)
	sharpness := make([]float64, n)
	edges := make([]float64, n)
	noise := make([]float64, n)
	checker := make([]float64, n)
	saturation := make([]float64, n)
	for i, f := range frames {
		sharpness[i] = f.Sharpness
		edges[i] = f.EdgeDensity
		noise[i] = f.NoiseResidual
		checker[i] = f.Checkerboard
		saturation[i] = f.Saturation
	}
	deltas := make([]float64, 0, n)
	for _, f := range frames[1:] {
		deltas = append(deltas, f.Delta)
	}

	sharpMean, sharpStd := meanStd(sharpness)
	deltaMean, deltaStd := meanStd(deltas)
	_, edgeStd := meanStd(edges)
	noiseMean, _ := meanStd(noise)
	checkerMean, _ := meanStd(checker)
	satMean, _ := meanStd(saturation)

	var anomalies []model.Anomaly
	anomalies = append(anomalies, v.qualityRules(sharpMean, sharpStd, n)...)
	anomalies = append(anomalies, v.temporalRules(frames, deltas, deltaMean, deltaStd)...)
	anomalies = append(anomalies, v.frameRules(frames)...)
	if n >= 2 {
		if sev := shortfall(edgeStd, v.cfg.EdgeStdFloor); sev > 0 {
			anomalies = append(anomalies, model.NewAnomaly(model.KindEdgeUniformity, model.SequenceIndex, sev,
				fmt.Sprintf("edge density std %.5f below %.5f", edgeStd, v.cfg.EdgeStdFloor)).
				WithMeasured(edgeStd))
		}
	}

	summary := map[string]float64{
		"sharpness_mean":    sharpMean,
		"sharpness_std":     sharpStd,
		"delta_mean":        deltaMean,
		"delta_std":         deltaStd,
		"edge_density_std":  edgeStd,
		"noise_mean":        noiseMean,
		"checkerboard_mean": checkerMean,
		"saturation_mean":   satMean,
	}
	return model.Succeeded(model.ChannelVideo, anomalies, n, summary)
}

func (v *VideoAnalyzer) qualityRules(mean, std float64, n int) []model.Anomaly {
	var out []model.Anomaly
	if n >= 2 && mean > v.cfg.SharpnessUniformMean {
		if sev := shortfall(std, v.cfg.SharpnessStdFloor); sev > 0 {
			out = append(out, model.NewAnomaly(model.KindSharpnessUniformity, model.SequenceIndex, sev,
				fmt.Sprintf("sharpness std %.2f below %.2f at mean %.1f", std, v.cfg.SharpnessStdFloor, mean)).
				WithMeasured(std))
		}
	}
	if sev := shortfall(mean, v.cfg.LowSharpnessMean); sev > 0 {
		out = append(out, model.NewAnomaly(model.KindLowSharpness, model.SequenceIndex, sev,
			fmt.Sprintf("mean sharpness %.1f below %.1f", mean, v.cfg.LowSharpnessMean)).
			WithMeasured(mean))
	}
	return out
}

func (v *VideoAnalyzer) temporalRules(frames []model.VideoFrame, deltas []float64, mean, std float64) []model.Anomaly {
	var out []model.Anomaly
	if len(deltas) >= 2 && mean > v.cfg.DeltaMovingMean {
		if sev := shortfall(std, v.cfg.DeltaStdFloor); sev > 0 {
			out = append(out, model.NewAnomaly(model.KindFrameDeltaUniformity, model.SequenceIndex, sev,
				fmt.Sprintf("frame delta std %.3f below %.3f while moving", std, v.cfg.DeltaStdFloor)).
				WithMeasured(std))
		}
	}

	if v.cfg.SpliceRatio <= 0 || v.cfg.SpliceRadius <= 0 {
		return out
	}
	for i := 1; i < len(frames); i++ {
		neighbours := make([]float64, 0, 2*v.cfg.SpliceRadius)
		for j := max(1, i-v.cfg.SpliceRadius); j <= min(len(frames)-1, i+v.cfg.SpliceRadius); j++ {
			if j != i {
				neighbours = append(neighbours, frames[j].Delta)
			}
		}
		if len(neighbours) == 0 {
			continue
		}
		med := median(neighbours)
		if med <= 0 {
			continue
		}
		ratio := frames[i].Delta / med
		if ratio <= v.cfg.SpliceRatio {
			continue
		}
		f := frames[i]
		out = append(out, model.NewAnomaly(model.KindFrameSplice, f.Index, excess(ratio, v.cfg.SpliceRatio),
			fmt.Sprintf("frame delta %.1fx the local median", ratio)).
			At(f.Timestamp).WithMeasured(ratio))
	}
	return out
}

// saturationSeverity grades a frame's mean saturation against the natural
// band. Oversaturated frames scale to 1 at full saturation.
func (v *VideoAnalyzer) saturationSeverity(s float64) float64 {
	lo, hi := v.cfg.SaturationLow, v.cfg.SaturationHigh
	if hi > 0 && hi < 1 && s > hi {
		return math.Min(1, (s-hi)/(1-hi))
	}
	return shortfall(s, lo)
}

// frameRules applies the per-frame color, checkerboard and noise rules.
func (v *VideoAnalyzer) frameRules(frames []model.VideoFrame) []model.Anomaly {
	var out []model.Anomaly
	for _, f := range frames {
		_, imbalance := meanStd(f.ChannelMeans[:])
		imbSev := excess(imbalance, v.cfg.ChannelImbalance)
		clusterSev := shortfall(f.ColorStd, v.cfg.ColorStdFloor)
		satSev := v.saturationSeverity(f.Saturation)
		if sev := max(imbSev, clusterSev, satSev); sev > 0 {
			var measured float64
			var note string
			switch sev {
			case imbSev:
				measured, note = imbalance, fmt.Sprintf("RGB mean imbalance %.1f above %.1f", imbalance, v.cfg.ChannelImbalance)
			case clusterSev:
				measured, note = f.ColorStd, fmt.Sprintf("color std %.1f below %.1f", f.ColorStd, v.cfg.ColorStdFloor)
			default:
				measured, note = f.Saturation, fmt.Sprintf("saturation %.3f outside [%.2f, %.2f]",
					f.Saturation, v.cfg.SaturationLow, v.cfg.SaturationHigh)
			}
			out = append(out, model.NewAnomaly(model.KindColorHistogramSkew, f.Index, sev, note).
				At(f.Timestamp).WithMeasured(measured))
		}

		if t := v.cfg.CheckerboardThreshold; t < 1 && f.Checkerboard > t {
			out = append(out, model.NewAnomaly(model.KindEdgeCheckerboard, f.Index, (f.Checkerboard-t)/(1-t),
				fmt.Sprintf("checkerboard periodicity %.2f above %.2f", f.Checkerboard, t)).
				At(f.Timestamp).WithMeasured(f.Checkerboard))
		}

		if sev := shortfall(f.NoiseResidual, v.cfg.NoiseFloor); sev > 0 {
			out = append(out, model.NewAnomaly(model.KindNoiseResidualDeficit, f.Index, sev,
				fmt.Sprintf("noise residual %.2f below %.2f", f.NoiseResidual, v.cfg.NoiseFloor)).
				At(f.Timestamp).WithMeasured(f.NoiseResidual))
		}
	}
	return out
}
