package model

import "sort"

// SequenceIndex marks an anomaly that describes a whole stream or file
// rather than one window or frame.
const SequenceIndex = -1

// Anomaly is a single piece of evidence produced by a channel rule.
// It is a value type; construct it with NewAnomaly so that the channel is
// derived from the kind catalog and severity is clamped.
type Anomaly struct {
	// Kind is the rule family that produced the anomaly.
	Kind AnomalyKind `json:"kind"`

	// Channel is the evidence channel of Kind.
	Channel Channel `json:"channel"`

	// Severity is the strength of the evidence in [0,1].
	Severity float64 `json:"severity"`

	// Index is the window or frame index, or SequenceIndex.
	Index int `json:"index"`

	// StartSeconds locates the window or frame in the stream.
	StartSeconds float64 `json:"start_seconds"`

	// Measured is the raw value that triggered the rule.
	Measured float64 `json:"measured"`

	// Note is a short human-readable description of the cause.
	Note string `json:"note"`
}

// NewAnomaly creates an anomaly of the given kind at index.
// Severity is clamped into [0,1].
func NewAnomaly(kind AnomalyKind, index int, severity float64, note string) Anomaly {
	if index < 0 {
		index = SequenceIndex
	}
	return Anomaly{
		Kind:     kind,
		Channel:  kind.Channel(),
		Severity: ClampUnit(severity),
		Index:    index,
		Note:     note,
	}
}

// At returns a copy of a located at the given stream offset.
func (a Anomaly) At(seconds float64) Anomaly {
	a.StartSeconds = seconds
	return a
}

// WithMeasured returns a copy of a carrying the measured value.
func (a Anomaly) WithMeasured(v float64) Anomaly {
	a.Measured = v
	return a
}

// Windowed reports whether the anomaly refers to a single window or frame.
func (a Anomaly) Windowed() bool {
	return a.Index >= 0
}

// Level returns the coarse severity label.
func (a Anomaly) Level() Severity {
	return SeverityOf(a.Severity)
}

// SortByIndex orders anomalies by ascending index, keeping the relative
// order of anomalies that share an index.
func SortByIndex(anomalies []Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Index < anomalies[j].Index
	})
}

// SortBySeverity orders anomalies by descending severity. Ties are broken
// by channel order, then index, then kind, so the result is deterministic.
func SortBySeverity(anomalies []Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		a, b := anomalies[i], anomalies[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Channel.Order() != b.Channel.Order() {
			return a.Channel.Order() < b.Channel.Order()
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Kind < b.Kind
	})
}
