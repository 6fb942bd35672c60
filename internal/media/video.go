package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deepcheck/internal/model"
)

const (
	// edgeThreshold is the Sobel gradient magnitude above which a pixel counts as an edge.
	edgeThreshold = 100.0

	// checkerBlock is the run length over which two-pixel periodicity is measured.
	checkerBlock = 8

	// checkerMinEnergy skips flat blocks whose gradient energy is only quantization noise.
	checkerMinEnergy = 16.0
)

// FFmpegVideo samples frames with ffmpeg and computes per-frame descriptors.
type FFmpegVideo struct {
	Binary       string
	SampleFrames int
	FrameWidth   int
	Workers      int
}

// NewFFmpegVideo returns a video source.
func NewFFmpegVideo(binary string, sampleFrames, frameWidth, workers int) *FFmpegVideo {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegVideo{Binary: binary, SampleFrames: sampleFrames, FrameWidth: frameWidth, Workers: workers}
}

// VideoFrames samples SampleFrames evenly spaced frames from the first video
// stream, scaled to FrameWidth, and describes each one.
// The frame size comes from the probe; an asset without one cannot be
// sampled and fails with ErrDecodeFailure.
func (v *FFmpegVideo) VideoFrames(ctx context.Context, asset model.MediaAsset) ([]model.VideoFrame, error) {
	if asset.Width <= 0 || asset.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg video: %w: frame size unknown", model.ErrDecodeFailure)
	}
	width, height := scaledSize(asset.Width, asset.Height, v.FrameWidth)

	rate := 1.0
	if asset.DurationSeconds > 0 {
		rate = float64(v.SampleFrames) / asset.DurationSeconds
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", asset.Path,
		"-map", "0:v:0",
		"-an",
		"-vf", fmt.Sprintf("fps=%.6f,scale=%d:%d", rate, width, height),
		"-frames:v", fmt.Sprintf("%d", v.SampleFrames),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-",
	}
	cmd := exec.CommandContext(ctx, v.Binary, args...) //nolint:gosec // binary is operator configuration
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classifyExecError(ctx, "ffmpeg video", err, stderr.String())
	}

	return FramesFromRGB(ctx, stdout.Bytes(), width, height, 1/rate, v.Workers)
}

// scaledSize keeps the aspect ratio and rounds both sides to even numbers.
func scaledSize(srcW, srcH, targetW int) (int, int) {
	if targetW <= 0 || targetW >= srcW {
		return srcW &^ 1, srcH &^ 1
	}
	h := int(math.Round(float64(srcH) * float64(targetW) / float64(srcW)))
	return max(2, targetW&^1), max(2, h&^1)
}

// FramesFromRGB splits packed rgb24 data into frames and computes their
// descriptors on a bounded worker pool. interval is the time between frames.
func FramesFromRGB(ctx context.Context, raw []byte, width, height int, interval float64, workers int) ([]model.VideoFrame, error) {
	frameBytes := width * height * 3
	if frameBytes <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	count := len(raw) / frameBytes
	if count == 0 {
		return []model.VideoFrame{}, nil
	}

	frames := make([]model.VideoFrame, count)
	lumas := make([][]float64, count)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for i := range count {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pix := raw[i*frameBytes : (i+1)*frameBytes]
			frame, luma := describeFrame(pix, width, height)
			frame.Index = i
			frame.Timestamp = float64(i) * interval
			frames[i] = frame
			lumas[i] = luma
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < count; i++ {
		frames[i].Delta = meanAbsDiff(lumas[i-1], lumas[i])
	}
	return frames, nil
}

// describeFrame computes every per-frame descriptor except Delta.
func describeFrame(pix []byte, width, height int) (model.VideoFrame, []float64) {
	n := width * height
	luma := make([]float64, n)

	var sum, sumSq [3]float64
	var allSum, allSumSq, satSum float64
	for p := range n {
		r, g, b := float64(pix[p*3]), float64(pix[p*3+1]), float64(pix[p*3+2])
		luma[p] = 0.299*r + 0.587*g + 0.114*b

		for c, v := range [3]float64{r, g, b} {
			sum[c] += v
			sumSq[c] += v * v
			allSum += v
			allSumSq += v * v
		}

		hi := math.Max(r, math.Max(g, b))
		lo := math.Min(r, math.Min(g, b))
		if hi > 0 {
			satSum += (hi - lo) / hi
		}
	}

	var f model.VideoFrame
	fn := float64(n)
	for c := range 3 {
		mean := sum[c] / fn
		f.ChannelMeans[c] = mean
		f.ChannelStds[c] = math.Sqrt(math.Max(0, sumSq[c]/fn-mean*mean))
	}
	allMean := allSum / (3 * fn)
	f.ColorStd = math.Sqrt(math.Max(0, allSumSq/(3*fn)-allMean*allMean))
	f.Saturation = satSum / fn

	f.Sharpness = laplacianVariance(luma, width, height)
	f.EdgeDensity = edgeDensity(luma, width, height)
	f.NoiseResidual = noiseResidual(luma, width, height)
	f.Checkerboard = checkerboardShare(luma, width, height)
	return f, luma
}

// laplacianVariance is the variance of the 4-neighbour Laplacian over interior pixels.
func laplacianVariance(y []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var sum, sumSq float64
	count := 0
	for row := 1; row < h-1; row++ {
		for col := 1; col < w-1; col++ {
			i := row*w + col
			l := y[i-w] + y[i+w] + y[i-1] + y[i+1] - 4*y[i]
			sum += l
			sumSq += l * l
			count++
		}
	}
	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

// edgeDensity is the fraction of interior pixels with Sobel magnitude above edgeThreshold.
func edgeDensity(y []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	edges, count := 0, 0
	for row := 1; row < h-1; row++ {
		for col := 1; col < w-1; col++ {
			i := row*w + col
			gx := (y[i-w+1] + 2*y[i+1] + y[i+w+1]) - (y[i-w-1] + 2*y[i-1] + y[i+w-1])
			gy := (y[i+w-1] + 2*y[i+w] + y[i+w+1]) - (y[i-w-1] + 2*y[i-w] + y[i-w+1])
			if math.Hypot(gx, gy) > edgeThreshold {
				edges++
			}
			count++
		}
	}
	return float64(edges) / float64(count)
}

// noiseResidual is the standard deviation of luma minus its 3x3 box blur.
func noiseResidual(y []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	var sum, sumSq float64
	count := 0
	for row := 1; row < h-1; row++ {
		for col := 1; col < w-1; col++ {
			i := row*w + col
			blur := (y[i-w-1] + y[i-w] + y[i-w+1] +
				y[i-1] + y[i] + y[i+1] +
				y[i+w-1] + y[i+w] + y[i+w+1]) / 9
			r := y[i] - blur
			sum += r
			sumSq += r * r
			count++
		}
	}
	mean := sum / float64(count)
	return math.Sqrt(math.Max(0, sumSq/float64(count)-mean*mean))
}

// checkerboardShare measures how much first-difference energy sits at the
// two-pixel period, along rows and columns, in blocks of checkerBlock
// differences. Natural content scores near 1/checkerBlock; the periodic
// pattern left by transposed convolutions scores near 1.
func checkerboardShare(y []float64, w, h int) float64 {
	var total float64
	blocks := 0

	measure := func(at func(k int) float64) {
		var alt, energy float64
		for k := range checkerBlock {
			d := at(k)
			if k%2 == 0 {
				alt += d
			} else {
				alt -= d
			}
			energy += d * d
		}
		if energy < checkerMinEnergy {
			return
		}
		total += alt * alt / (checkerBlock * energy)
		blocks++
	}

	for row := range h {
		base := row * w
		for col := 0; col+checkerBlock < w; col += checkerBlock {
			c0 := base + col
			measure(func(k int) float64 { return y[c0+k+1] - y[c0+k] })
		}
	}
	for col := range w {
		for row := 0; row+checkerBlock < h; row += checkerBlock {
			r0 := row
			measure(func(k int) float64 { return y[(r0+k+1)*w+col] - y[(r0+k)*w+col] })
		}
	}

	if blocks == 0 {
		return 0
	}
	return total / float64(blocks)
}

func meanAbsDiff(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a))
}
