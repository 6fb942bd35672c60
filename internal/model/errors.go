package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the analysis taxonomy. Callers match them with errors.Is.
var (
	// ErrUnsupportedFormat indicates the file type is not accepted for analysis.
	ErrUnsupportedFormat = errors.New("unsupported media format")

	// ErrDecodeFailure indicates a stream exists but could not be decoded.
	ErrDecodeFailure = errors.New("media decode failure")

	// ErrExternalToolUnavailable indicates a required external utility could not be invoked.
	ErrExternalToolUnavailable = errors.New("external tool unavailable")

	// ErrNoEvidenceAvailable indicates that every channel failed or was not applicable.
	// The outcome is indeterminate and no score is produced.
	ErrNoEvidenceAvailable = errors.New("no evidence available: result is indeterminate")

	// ErrCancelled indicates the run was cancelled before all channels completed.
	ErrCancelled = errors.New("analysis cancelled")
)

// ChannelError records why a single channel could not produce evidence.
// Kind is one of the sentinel errors above; Cause is the underlying failure.
type ChannelError struct {
	Channel Channel
	Kind    error
	Cause   error
}

// NewChannelError wraps cause as a failure of the given kind on channel ch.
func NewChannelError(ch Channel, kind, cause error) *ChannelError {
	return &ChannelError{Channel: ch, Kind: kind, Cause: cause}
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s channel: %v", e.Channel, e.Kind)
	}
	return fmt.Sprintf("%s channel: %v: %v", e.Channel, e.Kind, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *ChannelError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Error kind labels used in serialized reports.
const (
	ErrorKindUnsupportedFormat = "unsupported_format"
	ErrorKindDecodeFailure     = "decode_failure"
	ErrorKindToolUnavailable   = "external_tool_unavailable"
	ErrorKindCancelled         = "cancelled"
	ErrorKindNoEvidence        = "no_evidence"
	ErrorKindInternal          = "internal"
)

// ErrorKindOf maps err onto a stable label for reports.
func ErrorKindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoEvidenceAvailable):
		return ErrorKindNoEvidence
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrorKindUnsupportedFormat
	case errors.Is(err, ErrDecodeFailure):
		return ErrorKindDecodeFailure
	case errors.Is(err, ErrExternalToolUnavailable):
		return ErrorKindToolUnavailable
	case errors.Is(err, ErrCancelled):
		return ErrorKindCancelled
	default:
		return ErrorKindInternal
	}
}
