package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/cmplx"
	"os/exec"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/nao1215/deepcheck/internal/model"
)

// rolloffFraction is the share of spectral energy below the rolloff frequency.
const rolloffFraction = 0.85

// FFmpegAudio decodes audio with ffmpeg and computes per-window descriptors.
type FFmpegAudio struct {
	Binary     string
	SampleRate int
	WindowSize int
	Workers    int
}

// NewFFmpegAudio returns an audio source.
func NewFFmpegAudio(binary string, sampleRate, windowSize, workers int) *FFmpegAudio {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegAudio{Binary: binary, SampleRate: sampleRate, WindowSize: windowSize, Workers: workers}
}

// AudioWindows decodes the first audio stream of asset to mono float PCM and
// splits it into windows. Returns ErrNoStream when the asset has no audio.
func (a *FFmpegAudio) AudioWindows(ctx context.Context, asset model.MediaAsset) ([]model.AudioWindow, error) {
	pcm, err := a.decode(ctx, asset.Path)
	if err != nil {
		return nil, err
	}
	return WindowsFromPCM(ctx, pcm, a.SampleRate, a.WindowSize, a.Workers)
}

func (a *FFmpegAudio) decode(ctx context.Context, path string) ([]float64, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-map", "0:a:0",
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(a.SampleRate),
		"-f", "f32le",
		"-",
	}
	cmd := exec.CommandContext(ctx, a.Binary, args...) //nolint:gosec // binary is operator configuration
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classifyExecError(ctx, "ffmpeg audio", err, stderr.String())
	}
	return decodeF32LE(stdout.Bytes()), nil
}

// decodeF32LE converts little-endian float32 PCM into float64 samples.
// A trailing partial sample is ignored.
func decodeF32LE(raw []byte) []float64 {
	n := len(raw) / 4
	out := make([]float64, n)
	for i := range n {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		v := float64(math.Float32frombits(bits))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = v
	}
	return out
}

// WindowsFromPCM splits mono samples into non-overlapping windows of size
// samples and computes their descriptors on a bounded worker pool. A trailing
// partial window is dropped.
func WindowsFromPCM(ctx context.Context, samples []float64, sampleRate, size, workers int) ([]model.AudioWindow, error) {
	if size <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid window size %d or sample rate %d", size, sampleRate)
	}
	count := len(samples) / size
	if count == 0 {
		return []model.AudioWindow{}, nil
	}
	workers = max(1, min(workers, count))

	windows := make([]model.AudioWindow, count)
	spectra := make([][]float64, count)

	g, ctx := errgroup.WithContext(ctx)
	chunk := (count + workers - 1) / workers
	for start := 0; start < count; start += chunk {
		end := min(start+chunk, count)
		g.Go(func() error {
			// FFT work buffers are not shared between goroutines.
			fft := fourier.NewFFT(size)
			hann := hannWindow(size)
			buf := make([]float64, size)
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				seg := samples[i*size : (i+1)*size]
				w := model.AudioWindow{
					Index:            i,
					StartSeconds:     float64(i*size) / float64(sampleRate),
					SampleRate:       sampleRate,
					Samples:          seg,
					ZeroCrossingRate: zeroCrossingRate(seg),
					Energy:           rms(seg),
				}
				for j, v := range seg {
					buf[j] = v * hann[j]
				}
				mag := magnitudes(fft.Coefficients(nil, buf))
				w.Centroid, w.Rolloff = centroidAndRolloff(mag, sampleRate, size)
				windows[i] = w
				spectra[i] = mag
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < count; i++ {
		windows[i].OnsetStrength = spectralFlux(spectra[i-1], spectra[i])
	}
	return windows, nil
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func magnitudes(coeffs []complex128) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = cmplx.Abs(c)
	}
	return out
}

// centroidAndRolloff returns the spectral centroid and the rolloff frequency in Hz.
func centroidAndRolloff(mag []float64, sampleRate, size int) (float64, float64) {
	binHz := float64(sampleRate) / float64(size)

	var weighted, total, energy float64
	for k, m := range mag {
		weighted += float64(k) * binHz * m
		total += m
		energy += m * m
	}
	if total == 0 {
		return 0, 0
	}
	centroid := weighted / total

	target := rolloffFraction * energy
	var cum float64
	rolloff := float64(len(mag)-1) * binHz
	for k, m := range mag {
		cum += m * m
		if cum >= target {
			rolloff = float64(k) * binHz
			break
		}
	}
	return centroid, rolloff
}

// spectralFlux is the mean positive magnitude change between two spectra.
func spectralFlux(prev, cur []float64) float64 {
	if len(prev) != len(cur) || len(cur) == 0 {
		return 0
	}
	var sum float64
	for k := range cur {
		if d := cur[k] - prev[k]; d > 0 {
			sum += d
		}
	}
	return sum / float64(len(cur))
}

func zeroCrossingRate(seg []float64) float64 {
	if len(seg) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(seg); i++ {
		if (seg[i-1] >= 0) != (seg[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(seg)-1)
}

func rms(seg []float64) float64 {
	if len(seg) == 0 {
		return 0
	}
	var sum float64
	for _, v := range seg {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(seg)))
}
