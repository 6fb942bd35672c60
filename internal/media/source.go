package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/nao1215/deepcheck/internal/model"
)

// ErrNoStream is returned by a source when the asset has no stream of the
// requested type. Analyzers turn it into a not-applicable result.
var ErrNoStream = errors.New("no matching stream")

// Prober inspects a file and describes its container and streams.
type Prober interface {
	Probe(ctx context.Context, path string) (Result, error)
}

// AudioSource decodes an asset into analysis windows.
type AudioSource interface {
	AudioWindows(ctx context.Context, asset model.MediaAsset) ([]model.AudioWindow, error)
}

// VideoSource decodes an asset into sampled frame descriptors.
type VideoSource interface {
	VideoFrames(ctx context.Context, asset model.MediaAsset) ([]model.VideoFrame, error)
}

// MetadataSource extracts a flat, lower-cased tag map from an asset.
type MetadataSource interface {
	Tags(ctx context.Context, asset model.MediaAsset) (map[string]string, error)
}

// classifyExecError maps a failed external command onto the error taxonomy.
// stderr is the captured diagnostic output of the tool.
func classifyExecError(ctx context.Context, tool string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w: %w", tool, model.ErrCancelled, ctx.Err())
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", tool, model.ErrExternalToolUnavailable, err)
	case isNoStreamMessage(stderr):
		return fmt.Errorf("%s: %w", tool, ErrNoStream)
	default:
		var pathErr *exec.Error
		if errors.As(err, &pathErr) {
			return fmt.Errorf("%s: %w: %w", tool, model.ErrExternalToolUnavailable, err)
		}
		if stderr == "" {
			return fmt.Errorf("%s: %w: %w", tool, model.ErrDecodeFailure, err)
		}
		return fmt.Errorf("%s: %w: %w: %s", tool, model.ErrDecodeFailure, err, stderr)
	}
}

func isNoStreamMessage(stderr string) bool {
	msg := strings.ToLower(stderr)
	return strings.Contains(msg, "matches no streams") ||
		strings.Contains(msg, "stream specifier") ||
		strings.Contains(msg, "does not contain any stream") ||
		strings.Contains(msg, "output file does not contain any stream")
}

// Requirement defines an external binary deepcheck relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status reports the availability of a required binary.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Requirements returns the external binaries needed for a full analysis.
func Requirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{Name: "FFprobe", Command: ffprobe, Description: "container probing and metadata extraction"},
		{Name: "FFmpeg", Command: ffmpeg, Description: "audio and video decoding"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{Requirement: req}
		cmd := strings.TrimSpace(req.Command)
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}
