package forensics

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
)

// AudioAnalyzer applies the spectral, temporal and amplitude-statistics rules
// to decoded audio windows.
type AudioAnalyzer struct {
	source  media.AudioSource
	cfg     config.Audio
	workers int
}

// NewAudioAnalyzer creates an audio analyzer. workers bounds the per-window
// statistics pool.
func NewAudioAnalyzer(source media.AudioSource, cfg config.Audio, workers int) *AudioAnalyzer {
	return &AudioAnalyzer{source: source, cfg: cfg, workers: max(1, workers)}
}

// Channel implements ChannelAnalyzer.
func (a *AudioAnalyzer) Channel() model.Channel {
	return model.ChannelAudio
}

// Analyze implements ChannelAnalyzer.
func (a *AudioAnalyzer) Analyze(ctx context.Context, asset model.MediaAsset) model.ChannelResult {
	if !asset.Kind.HasAudio() {
		return model.NotApplicable(model.ChannelAudio, model.ReasonNoAudio)
	}
	windows, err := a.source.AudioWindows(ctx, asset)
	if err != nil {
		return resultFromError(ctx, model.ChannelAudio, err, model.ReasonNoAudio)
	}
	result, err := a.Evaluate(ctx, windows)
	if err != nil {
		return resultFromError(ctx, model.ChannelAudio, err, model.ReasonNoAudio)
	}
	return result
}

// Evaluate applies the audio rules to windows. Windows below the silence
// floor are ignored; when none remain the channel is not applicable.
// The only error is cancellation of ctx.
func (a *AudioAnalyzer) Evaluate(ctx context.Context, windows []model.AudioWindow) (model.ChannelResult, error) {
	usable := make([]model.AudioWindow, 0, len(windows))
	for _, w := range windows {
		if w.Energy >= a.cfg.SilenceFloor && w.Energy > 0 {
			usable = append(usable, w)
		}
	}
	if len(usable) == 0 {
		return model.NotApplicable(model.ChannelAudio, model.ReasonNoAudio), nil
	}

	moments, err := a.amplitudeMoments(ctx, usable)
	if err != nil {
		return model.ChannelResult{}, err
	}

	var anomalies []model.Anomaly
	anomalies = append(anomalies, a.spectralRules(usable)...)
	temporal, onsets := a.temporalRules(usable)
	anomalies = append(anomalies, temporal...)
	anomalies = append(anomalies, a.statisticalRules(usable, moments)...)

	centroids := make([]float64, len(usable))
	energies := make([]float64, len(usable))
	for i, w := range usable {
		centroids[i] = w.Centroid
		energies[i] = w.Energy
	}
	centroidMean, centroidStd := meanStd(centroids)
	energyMean, _ := meanStd(energies)

	var kurtSum float64
	kurtN := 0
	for _, m := range moments {
		if m.valid {
			kurtSum += m.kurtosis
			kurtN++
		}
	}
	kurtMean := 0.0
	if kurtN > 0 {
		kurtMean = kurtSum / float64(kurtN)
	}

	summary := map[string]float64{
		"centroid_mean":  centroidMean,
		"centroid_std":   centroidStd,
		"energy_mean":    energyMean,
		"kurtosis_mean":  kurtMean,
		"onset_count":    float64(onsets),
		"usable_windows": float64(len(usable)),
		"total_windows":  float64(len(windows)),
	}
	return model.Succeeded(model.ChannelAudio, anomalies, len(usable), summary), nil
}

type moments struct {
	kurtosis float64
	skewness float64
	valid    bool
}

// amplitudeMoments computes excess kurtosis and skewness of every window on a
// bounded worker pool. Each goroutine writes only its own slot.
func (a *AudioAnalyzer) amplitudeMoments(ctx context.Context, windows []model.AudioWindow) ([]moments, error) {
	out := make([]moments, len(windows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range windows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			samples := windows[i].Samples
			if len(samples) < 4 {
				return nil
			}
			k := stat.ExKurtosis(samples, nil)
			s := stat.Skew(samples, nil)
			if math.IsNaN(k) || math.IsNaN(s) || math.IsInf(k, 0) || math.IsInf(s, 0) {
				return nil
			}
			out[i] = moments{kurtosis: k, skewness: s, valid: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// spectralRules checks rolling centroid, rolloff and zero-crossing variance
// and rolloff pinned near Nyquist.
func (a *AudioAnalyzer) spectralRules(windows []model.AudioWindow) []model.Anomaly {
	var out []model.Anomaly

	span, ends := rollingEnds(len(windows), a.cfg.RollingWindows)
	centroid := make([]float64, span)
	rolloff := make([]float64, span)
	zcr := make([]float64, span)
	for _, end := range ends {
		for j := range span {
			w := windows[end-span+1+j]
			centroid[j] = w.Centroid
			rolloff[j] = w.Rolloff
			zcr[j] = w.ZeroCrossingRate
		}
		last := windows[end]

		_, cStd := meanStd(centroid)
		_, rStd := meanStd(rolloff)
		cSev := shortfall(cStd, a.cfg.CentroidStdFloor)
		rSev := shortfall(rStd, a.cfg.RolloffStdFloor)
		if cSev > 0 || rSev > 0 {
			measured, note := cStd, fmt.Sprintf("centroid std %.1f Hz below %.0f Hz", cStd, a.cfg.CentroidStdFloor)
			if rSev > cSev {
				measured, note = rStd, fmt.Sprintf("rolloff std %.1f Hz below %.0f Hz", rStd, a.cfg.RolloffStdFloor)
			}
			out = append(out, model.NewAnomaly(model.KindSpectralFlatness, last.Index, math.Max(cSev, rSev), note).
				At(last.StartSeconds).WithMeasured(measured))
		}

		_, zStd := meanStd(zcr)
		if sev := shortfall(zStd, a.cfg.ZCRStdFloor); sev > 0 {
			out = append(out, model.NewAnomaly(model.KindZeroCrossingUniformity, last.Index, sev,
				fmt.Sprintf("zero-crossing rate std %.4f below %.4f", zStd, a.cfg.ZCRStdFloor)).
				At(last.StartSeconds).WithMeasured(zStd))
		}
	}

	if a.cfg.RolloffNyquistRatio > 0 && a.cfg.RolloffNyquistRatio < 1 {
		for _, w := range windows {
			nyquist := w.Nyquist()
			limit := a.cfg.RolloffNyquistRatio * nyquist
			if nyquist <= 0 || w.Rolloff <= limit {
				continue
			}
			sev := (w.Rolloff - limit) / (nyquist - limit)
			out = append(out, model.NewAnomaly(model.KindSpectralFlatness, w.Index, sev,
				fmt.Sprintf("rolloff %.0f Hz pinned near Nyquist %.0f Hz", w.Rolloff, nyquist)).
				At(w.StartSeconds).WithMeasured(w.Rolloff))
		}
	}
	return out
}

// temporalRules checks onset regularity, rolling energy variation and energy
// jumps. It also returns the number of detected onsets.
func (a *AudioAnalyzer) temporalRules(windows []model.AudioWindow) ([]model.Anomaly, int) {
	var out []model.Anomaly

	onsets := detectOnsets(windows, a.cfg.OnsetSensitivity)
	if a.cfg.MinOnsets > 0 && len(onsets) > a.cfg.MinOnsets {
		intervals := make([]float64, 0, len(onsets)-1)
		for i := 1; i < len(onsets); i++ {
			intervals = append(intervals, float64(windows[onsets[i]].Index-windows[onsets[i-1]].Index))
		}
		for i := a.cfg.MinOnsets - 1; i < len(intervals); i++ {
			_, std := meanStd(intervals[i-a.cfg.MinOnsets+1 : i+1])
			if sev := shortfall(std, a.cfg.OnsetIntervalStdFloor); sev > 0 {
				w := windows[onsets[i+1]]
				out = append(out, model.NewAnomaly(model.KindTemporalUniformity, w.Index, sev,
					fmt.Sprintf("onset interval std %.2f windows below %.2f", std, a.cfg.OnsetIntervalStdFloor)).
					At(w.StartSeconds).WithMeasured(std))
			}
		}
	}

	span, ends := rollingEnds(len(windows), a.cfg.RollingWindows)
	energy := make([]float64, span)
	for _, end := range ends {
		for j := range span {
			energy[j] = windows[end-span+1+j].Energy
		}
		mean, std := meanStd(energy)
		if mean <= 0 {
			continue
		}
		cv := std / mean
		if sev := shortfall(cv, a.cfg.EnergyCVFloor); sev > 0 {
			w := windows[end]
			out = append(out, model.NewAnomaly(model.KindTemporalUniformity, w.Index, sev,
				fmt.Sprintf("energy variation %.3f below %.3f", cv, a.cfg.EnergyCVFloor)).
				At(w.StartSeconds).WithMeasured(cv))
		}
	}

	if a.cfg.EnergyJumpRatio > 0 {
		for i := 1; i < len(windows); i++ {
			prev, cur := windows[i-1].Energy, windows[i].Energy
			ratio := math.Max(prev, cur) / math.Min(prev, cur)
			if ratio <= a.cfg.EnergyJumpRatio {
				continue
			}
			w := windows[i]
			out = append(out, model.NewAnomaly(model.KindTemporalDiscontinuity, w.Index, excess(ratio, a.cfg.EnergyJumpRatio),
				fmt.Sprintf("energy changed %.1fx between adjacent windows", ratio)).
				At(w.StartSeconds).WithMeasured(ratio))
		}
	}
	return out, len(onsets)
}

// detectOnsets returns the positions of local onset-strength maxima above
// mean + k*std.
func detectOnsets(windows []model.AudioWindow, k float64) []int {
	strength := make([]float64, len(windows))
	for i, w := range windows {
		strength[i] = w.OnsetStrength
	}
	mean, std := meanStd(strength)
	threshold := mean + k*std

	var onsets []int
	for i, s := range strength {
		if s <= threshold {
			continue
		}
		if i > 0 && strength[i-1] > s {
			continue
		}
		if i+1 < len(strength) && strength[i+1] > s {
			continue
		}
		onsets = append(onsets, i)
	}
	return onsets
}

// statisticalRules checks amplitude kurtosis and skewness per window.
func (a *AudioAnalyzer) statisticalRules(windows []model.AudioWindow, m []moments) []model.Anomaly {
	var out []model.Anomaly
	for i, w := range windows {
		if !m[i].valid {
			continue
		}
		k, s := m[i].kurtosis, m[i].skewness
		if a.cfg.KurtosisBound > 0 && math.Abs(k) < a.cfg.KurtosisBound {
			out = append(out, model.NewAnomaly(model.KindAmplitudeKurtosis, w.Index, 1-math.Abs(k)/a.cfg.KurtosisBound,
				fmt.Sprintf("excess kurtosis %.2f is near Gaussian", k)).
				At(w.StartSeconds).WithMeasured(k))
		}
		if sev := excess(math.Abs(s), a.cfg.SkewnessBound); sev > 0 {
			out = append(out, model.NewAnomaly(model.KindAmplitudeSkewness, w.Index, sev,
				fmt.Sprintf("skewness %.2f exceeds %.1f", s, a.cfg.SkewnessBound)).
				At(w.StartSeconds).WithMeasured(s))
		}
	}
	return out
}
