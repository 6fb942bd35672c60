package model

import "maps"

// ChannelStatus is the tag of a ChannelResult.
type ChannelStatus string

const (
	// StatusSucceeded means the channel ran and produced (possibly zero) anomalies.
	StatusSucceeded ChannelStatus = "succeeded"

	// StatusFailed means the channel could not produce evidence.
	StatusFailed ChannelStatus = "failed"

	// StatusNotApplicable means the asset has nothing for the channel to analyze.
	StatusNotApplicable ChannelStatus = "not_applicable"
)

// Not-applicable reasons.
const (
	ReasonNoAudio     = "no-audio-channel"
	ReasonNoVideo     = "no-video-channel"
	ReasonNotSelected = "channel-not-selected"
)

// ChannelResult is the outcome of one channel analyzer.
// Exactly one of the three states holds; use Succeeded, Failed or NotApplicable
// to build a value.
type ChannelResult struct {
	// Channel identifies the analyzer.
	Channel Channel `json:"channel"`

	// Status is the variant tag.
	Status ChannelStatus `json:"status"`

	// Anomalies is set for succeeded results, ordered by ascending index.
	Anomalies []Anomaly `json:"anomalies"`

	// Units is the number of analyzed windows or frames (1 for metadata).
	Units int `json:"units"`

	// Summary holds descriptive statistics for reporting.
	Summary map[string]float64 `json:"summary,omitempty"`

	// SubScore is the channel score assigned by the aggregator.
	// It is nil unless the channel succeeded and was scored.
	SubScore *float64 `json:"sub_score,omitempty"`

	// Reason explains a failed or not-applicable result.
	Reason string `json:"reason,omitempty"`

	// ErrorKind is the taxonomy label of a failure.
	ErrorKind string `json:"error_kind,omitempty"`

	err error
}

// Succeeded creates a successful result. The anomaly slice is copied and sorted
// by index so callers cannot mutate the result afterwards.
func Succeeded(ch Channel, anomalies []Anomaly, units int, summary map[string]float64) ChannelResult {
	cp := make([]Anomaly, len(anomalies))
	copy(cp, anomalies)
	SortByIndex(cp)
	if units < 0 {
		units = 0
	}
	return ChannelResult{
		Channel:   ch,
		Status:    StatusSucceeded,
		Anomalies: cp,
		Units:     units,
		Summary:   maps.Clone(summary),
	}
}

// Failed creates a failed result carrying err.
func Failed(ch Channel, err error) ChannelResult {
	r := ChannelResult{
		Channel:   ch,
		Status:    StatusFailed,
		Anomalies: []Anomaly{},
		ErrorKind: ErrorKindOf(err),
		err:       err,
	}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// NotApplicable creates a not-applicable result with the given reason.
func NotApplicable(ch Channel, reason string) ChannelResult {
	return ChannelResult{
		Channel:   ch,
		Status:    StatusNotApplicable,
		Anomalies: []Anomaly{},
		Reason:    reason,
	}
}

// Available reports whether the channel produced usable evidence.
func (r ChannelResult) Available() bool {
	return r.Status == StatusSucceeded
}

// Err returns the failure cause of a failed result. It is nil for
// results decoded from JSON.
func (r ChannelResult) Err() error {
	return r.err
}

// WithSubScore returns a copy of r carrying the aggregator's sub-score.
func (r ChannelResult) WithSubScore(score float64) ChannelResult {
	s := score
	r.SubScore = &s
	return r
}

// Score returns the sub-score or 0 when unset.
func (r ChannelResult) Score() float64 {
	if r.SubScore == nil {
		return 0
	}
	return *r.SubScore
}
