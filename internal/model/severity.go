package model

import "math"

// Severity is a coarse label for an anomaly severity in [0,1].
// Scores are always carried as float64; the label exists only for
// human-facing summaries and report grouping.
type Severity int

const (
	// SeverityInfo covers severities below 0.2.
	SeverityInfo Severity = iota

	// SeverityLow covers [0.2, 0.4).
	SeverityLow

	// SeverityMedium covers [0.4, 0.6).
	SeverityMedium

	// SeverityHigh covers [0.6, 0.8).
	SeverityHigh

	// SeverityCritical covers [0.8, 1.0].
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// SeverityOf buckets a numeric severity into a Severity label.
func SeverityOf(v float64) Severity {
	v = ClampUnit(v)
	switch {
	case v >= 0.8:
		return SeverityCritical
	case v >= 0.6:
		return SeverityHigh
	case v >= 0.4:
		return SeverityMedium
	case v >= 0.2:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// ClampUnit clamps v into [0,1]. NaN maps to 0.
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
