package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and Analysis.Validate so
// callers can match them with errors.Is.
var (
	// ErrNoTarget is returned when no media file or directory is given.
	ErrNoTarget = errors.New("no target specified: provide a media file or use --dir")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingOutputs is returned when both --output and --output-dir are specified.
	ErrConflictingOutputs = errors.New("conflicting outputs: --output and --output-dir cannot be used together")

	// ErrInvalidThreshold is returned when the verdict threshold is outside [0,1].
	ErrInvalidThreshold = errors.New("invalid threshold: must be within [0,1]")

	// ErrInvalidWeight is returned when a channel or kind weight is negative or NaN.
	ErrInvalidWeight = errors.New("invalid weight: must be a non-negative number")

	// ErrUnknownChannel is returned for a channel name outside audio, video and metadata.
	ErrUnknownChannel = errors.New("unknown channel: must be audio, video or metadata")

	// ErrUnknownKind is returned for a weight or severity keyed by an unknown anomaly kind.
	ErrUnknownKind = errors.New("unknown anomaly kind")

	// ErrInvalidWindowSize is returned when the audio window is too short for analysis.
	ErrInvalidWindowSize = errors.New("invalid window size: must be a power of two of at least 256 samples")

	// ErrInvalidSampleRate is returned when the audio decode rate is not positive.
	ErrInvalidSampleRate = errors.New("invalid sample rate: must be positive")

	// ErrInvalidConcurrency is returned when the channel concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidSampleFrames is returned when fewer than two video frames are requested.
	ErrInvalidSampleFrames = errors.New("invalid sample frames: must be at least 2")

	// ErrInvalidSeverity is returned when a configured metadata severity is outside [0,1].
	ErrInvalidSeverity = errors.New("invalid severity: must be within [0,1]")

	// ErrInvalidSaturationBand is returned when the natural saturation band is empty or outside [0,1].
	ErrInvalidSaturationBand = errors.New("invalid saturation band: need 0 <= saturation_low < saturation_high <= 1")
)
