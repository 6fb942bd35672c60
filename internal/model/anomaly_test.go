package model

import (
	"errors"
	"testing"
)

// TestNewAnomaly tests the anomaly constructor.
func TestNewAnomaly(t *testing.T) {
	t.Parallel()

	t.Run("derives channel from kind", func(t *testing.T) {
		t.Parallel()
		a := NewAnomaly(KindEdgeCheckerboard, 3, 0.8, "periodic")
		if a.Channel != ChannelVideo {
			t.Errorf("got channel %q, expected video", a.Channel)
		}
		if !a.Windowed() {
			t.Error("expected windowed anomaly")
		}
	})

	t.Run("clamps severity", func(t *testing.T) {
		t.Parallel()
		if s := NewAnomaly(KindSparseMetadata, -1, 1.7, "").Severity; s != 1 {
			t.Errorf("got %v, expected 1", s)
		}
		if s := NewAnomaly(KindSparseMetadata, -1, -0.3, "").Severity; s != 0 {
			t.Errorf("got %v, expected 0", s)
		}
	})

	t.Run("normalizes negative index", func(t *testing.T) {
		t.Parallel()
		a := NewAnomaly(KindLowSharpness, -42, 0.5, "")
		if a.Index != SequenceIndex || a.Windowed() {
			t.Errorf("got index %d, expected %d", a.Index, SequenceIndex)
		}
	})

	t.Run("copy helpers do not mutate receiver", func(t *testing.T) {
		t.Parallel()
		a := NewAnomaly(KindFrameSplice, 2, 0.9, "")
		b := a.At(1.5).WithMeasured(42)
		if a.StartSeconds != 0 || a.Measured != 0 {
			t.Error("receiver was mutated")
		}
		if b.StartSeconds != 1.5 || b.Measured != 42 {
			t.Errorf("got %+v", b)
		}
	})
}

// TestSortBySeverity tests deterministic ordering of merged anomalies.
func TestSortBySeverity(t *testing.T) {
	t.Parallel()

	anomalies := []Anomaly{
		NewAnomaly(KindSparseMetadata, -1, 0.3, ""),
		NewAnomaly(KindEdgeCheckerboard, 5, 0.8, ""),
		NewAnomaly(KindSpectralFlatness, 2, 0.8, ""),
		NewAnomaly(KindEdgeCheckerboard, 1, 0.8, ""),
		NewAnomaly(KindSynthesisToolSignature, -1, 0.9, ""),
	}
	SortBySeverity(anomalies)

	expected := []struct {
		kind  AnomalyKind
		index int
	}{
		{KindSynthesisToolSignature, -1},
		{KindSpectralFlatness, 2},
		{KindEdgeCheckerboard, 1},
		{KindEdgeCheckerboard, 5},
		{KindSparseMetadata, -1},
	}

	for i, e := range expected {
		if anomalies[i].Kind != e.kind || anomalies[i].Index != e.index {
			t.Errorf("position %d: got %s@%d, expected %s@%d",
				i, anomalies[i].Kind, anomalies[i].Index, e.kind, e.index)
		}
	}
}

// TestChannelResultConstructors tests the tagged variant constructors.
func TestChannelResultConstructors(t *testing.T) {
	t.Parallel()

	t.Run("succeeded copies and sorts anomalies", func(t *testing.T) {
		t.Parallel()
		in := []Anomaly{
			NewAnomaly(KindAmplitudeKurtosis, 9, 0.2, ""),
			NewAnomaly(KindAmplitudeKurtosis, 1, 0.4, ""),
		}
		r := Succeeded(ChannelAudio, in, 10, map[string]float64{"windows": 10})
		in[0].Severity = 1

		if !r.Available() || r.Status != StatusSucceeded {
			t.Fatal("expected succeeded result")
		}
		if r.Anomalies[0].Index != 1 || r.Anomalies[1].Index != 9 {
			t.Errorf("anomalies not sorted by index: %+v", r.Anomalies)
		}
		if r.Anomalies[1].Severity != 0.2 {
			t.Error("result shares backing array with caller")
		}
		if r.Err() != nil {
			t.Error("succeeded result must not carry an error")
		}
	})

	t.Run("failed records error kind", func(t *testing.T) {
		t.Parallel()
		err := NewChannelError(ChannelMetadata, ErrExternalToolUnavailable, errors.New("ffprobe: not found"))
		r := Failed(ChannelMetadata, err)

		if r.Available() {
			t.Error("failed result must not be available")
		}
		if r.ErrorKind != ErrorKindToolUnavailable {
			t.Errorf("got error kind %q", r.ErrorKind)
		}
		if !errors.Is(r.Err(), ErrExternalToolUnavailable) {
			t.Error("expected wrapped sentinel")
		}
		if r.SubScore != nil {
			t.Error("failed result must not carry a sub-score")
		}
	})

	t.Run("not applicable is neither succeeded nor failed", func(t *testing.T) {
		t.Parallel()
		r := NotApplicable(ChannelVideo, ReasonNoVideo)
		if r.Available() || r.Status == StatusFailed {
			t.Errorf("unexpected status %q", r.Status)
		}
		if r.Reason != ReasonNoVideo {
			t.Errorf("got reason %q", r.Reason)
		}
	})
}

// TestErrorKindOf tests taxonomy labels.
func TestErrorKindOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err      error
		expected string
	}{
		{nil, ""},
		{ErrUnsupportedFormat, ErrorKindUnsupportedFormat},
		{NewChannelError(ChannelAudio, ErrDecodeFailure, errors.New("eof")), ErrorKindDecodeFailure},
		{ErrCancelled, ErrorKindCancelled},
		{errors.Join(ErrNoEvidenceAvailable, NewChannelError(ChannelVideo, ErrDecodeFailure, nil)), ErrorKindNoEvidence},
		{errors.New("boom"), ErrorKindInternal},
	}

	for _, tc := range testCases {
		if got := ErrorKindOf(tc.err); got != tc.expected {
			t.Errorf("ErrorKindOf(%v) = %q, expected %q", tc.err, got, tc.expected)
		}
	}
}
