package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/nao1215/deepcheck/internal/model"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	CodecTag    string            `json:"codec_tag_string"`
	Profile     string            `json:"profile"`
	Duration    string            `json:"duration"`
	BitRate     string            `json:"bit_rate"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	SampleRate  string            `json:"sample_rate"`
	Channels    int               `json:"channels"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	Binary string
}

// NewFFprobe returns a prober using binary, or "ffprobe" when empty.
func NewFFprobe(binary string) *FFprobe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &FFprobe{Binary: binary}
}

// Probe executes ffprobe against path and decodes the JSON response.
func (p *FFprobe) Probe(ctx context.Context, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, p.Binary, //nolint:gosec // binary is operator configuration
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, classifyExecError(ctx, "ffprobe", err, stderr.String())
	}

	return ParseProbe(stdout.Bytes())
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w: %w", model.ErrDecodeFailure, err)
	}
	return result, nil
}

// HasAudio reports whether an audio stream exists.
func (r Result) HasAudio() bool {
	_, ok := r.firstStream("audio")
	return ok
}

// HasVideo reports whether a real video stream exists. Embedded cover art
// (attached pictures) does not count.
func (r Result) HasVideo() bool {
	_, ok := r.firstStream("video")
	return ok
}

// VideoStream returns the first real video stream.
func (r Result) VideoStream() (Stream, bool) {
	return r.firstStream("video")
}

func (r Result) firstStream(codecType string) (Stream, bool) {
	for _, s := range r.Streams {
		if !strings.EqualFold(s.CodecType, codecType) {
			continue
		}
		if codecType == "video" && s.Disposition["attached_pic"] == 1 {
			continue
		}
		return s, true
	}
	return Stream{}, false
}

// Kind returns the media kind implied by the stream layout.
// Returns ErrUnsupportedFormat when the container has neither audio nor video.
func (r Result) Kind() (model.MediaKind, error) {
	switch a, v := r.HasAudio(), r.HasVideo(); {
	case a && v:
		return model.MediaKindAudiovisual, nil
	case v:
		return model.MediaKindVideo, nil
	case a:
		return model.MediaKindAudio, nil
	default:
		return "", model.ErrUnsupportedFormat
	}
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	d := parseFloat(r.Format.Duration)
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// FlatTags merges format and stream tags into one lower-cased map.
// Stream tags are prefixed with "stream.<codec_type>.". Technical stream
// facts the metadata rules rely on are added under "stream.<type>.codec"
// and friends.
func (r Result) FlatTags() map[string]string {
	tags := make(map[string]string)
	for k, v := range r.Format.Tags {
		tags[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	if r.Format.FormatName != "" {
		tags["format.name"] = r.Format.FormatName
	}

	seen := make(map[string]bool)
	for _, s := range r.Streams {
		typ := strings.ToLower(s.CodecType)
		if typ == "" || seen[typ] {
			continue
		}
		seen[typ] = true
		prefix := "stream." + typ + "."
		for k, v := range s.Tags {
			tags[prefix+strings.ToLower(k)] = strings.TrimSpace(v)
		}
		if s.CodecName != "" {
			tags[prefix+"codec"] = s.CodecName
		}
		if s.Profile != "" {
			tags[prefix+"profile"] = s.Profile
		}
	}
	return tags
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
