package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/scoring"
)

// createTestReport creates a report with a checkerboard video and a failed
// metadata channel.
func createTestReport(t *testing.T) *model.AnalysisReport {
	t.Helper()

	var anomalies []model.Anomaly
	for i := range 3 {
		anomalies = append(anomalies, model.NewAnomaly(model.KindEdgeCheckerboard, i, 0.8,
			"checkerboard periodicity 0.87 above 0.35").At(float64(i)*0.5).WithMeasured(0.87))
	}
	results := []model.ChannelResult{
		model.NotApplicable(model.ChannelAudio, model.ReasonNoAudio),
		model.Succeeded(model.ChannelVideo, anomalies, 3, map[string]float64{"sharpness_mean": 310.5, "checkerboard_mean": 0.87}),
		model.Failed(model.ChannelMetadata, fmt.Errorf("ffprobe: %w", model.ErrExternalToolUnavailable)),
	}
	asset := model.MediaAsset{
		Path:            "/cases/clip.mp4",
		Fingerprint:     strings.Repeat("ab", 32),
		Kind:            model.MediaKindVideo,
		FormatName:      "mov,mp4,m4a,3gp,3g2,mj2",
		DurationSeconds: 10,
		SizeBytes:       4096,
		Width:           1280,
		Height:          720,
	}

	agg := scoring.NewAggregator(config.DefaultAnalysis().Scoring,
		scoring.WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }),
		scoring.WithIDGenerator(func() string { return "report-1" }),
	)
	report, err := agg.Aggregate(asset, results)
	if err != nil {
		t.Fatalf("failed to build report: %v", err)
	}
	report.ElapsedMS = 1234
	return report
}

// errWriter always fails.
type errWriter struct{}

func (errWriter) Write(_ []byte) (int, error) { return 0, errors.New("disk full") }

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and verdict", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"DEEPCHECK REPORT",
			"/cases/clip.mp4",
			"report-1",
			"1280x720",
			model.VerdictSynthetic,
			"Confidence: 0.800",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes channel lines", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Not Applicable") || !strings.Contains(output, model.ReasonNoAudio) {
			t.Error("expected not applicable audio line")
		}
		if !strings.Contains(output, "anomalies 3 over 3 frames") {
			t.Error("expected video unit count")
		}
		if !strings.Contains(output, "Failed") {
			t.Error("expected failed metadata line")
		}
	})

	t.Run("writes anomalies", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[!!!] "+model.KindEdgeCheckerboard.Title()) {
			t.Error("expected critical checkerboard anomaly")
		}
		if !strings.Contains(output, "frame 2 at 1.00s") {
			t.Error("expected anomaly location")
		}
		if strings.Contains(output, "measured:") {
			t.Error("measured values are only shown in verbose mode")
		}
	})

	t.Run("verbose shows measured values", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "measured: 0.87") {
			t.Error("expected measured value in verbose output")
		}
	})

	t.Run("empty sections", func(t *testing.T) {
		t.Parallel()

		report := createTestReport(t)
		report.Anomalies = nil

		var hidden, shown bytes.Buffer
		if _, err := NewSimpleWriter(&hidden).Write(report); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSimpleWriter(&shown, WithShowEmpty(true)).Write(report); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(hidden.String(), "SEVERITY SUMMARY") {
			t.Error("empty severity summary should be hidden")
		}
		if !strings.Contains(shown.String(), "No anomalies detected") {
			t.Error("expected empty anomaly section with WithShowEmpty")
		}
	})

	t.Run("simple report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteSimple(model.NewSimpleReport(createTestReport(t))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "Fingerprint") {
			t.Error("simple report has no asset details")
		}
		if !strings.Contains(buf.String(), "CRITICAL: 3") {
			t.Error("expected severity counts")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes schema-conforming JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := Validate(buf.Bytes()); err != nil {
			t.Errorf("report does not validate: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["is_likely_synthetic"] != true || decoded["id"] != "report-1" {
			t.Errorf("unexpected fields: %v", decoded)
		}
	})

	t.Run("compact and pretty output", func(t *testing.T) {
		t.Parallel()

		var compact, pretty bytes.Buffer
		report := createTestReport(t)
		if _, err := NewJSONWriter(&compact).Write(report); err != nil {
			t.Fatal(err)
		}
		if _, err := NewJSONWriter(&pretty, WithPrettyPrint()).Write(report); err != nil {
			t.Fatal(err)
		}
		if strings.Count(compact.String(), "\n") != 1 {
			t.Error("compact output should be a single line")
		}
		if !strings.Contains(pretty.String(), "\n  \"id\": \"report-1\"") {
			t.Error("expected two-space indentation")
		}
	})

	t.Run("simple report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteSimple(model.NewSimpleReport(createTestReport(t))); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), `"verdict":"LIKELY SYNTHETIC"`) {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})
}

// TestValidate tests the embedded report schema.
func TestValidate(t *testing.T) {
	t.Parallel()

	valid, err := json.Marshal(createTestReport(t))
	if err != nil {
		t.Fatal(err)
	}

	mutate := func(fn func(map[string]any)) []byte {
		var doc map[string]any
		if err := json.Unmarshal(valid, &doc); err != nil {
			t.Fatal(err)
		}
		fn(doc)
		out, err := json.Marshal(doc)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "valid report", data: valid},
		{name: "score above one", data: mutate(func(d map[string]any) { d["confidence_score"] = 1.5 }), wantErr: true},
		{name: "missing id", data: mutate(func(d map[string]any) { delete(d, "id") }), wantErr: true},
		{name: "unknown channel weight", data: mutate(func(d map[string]any) {
			d["effective_weights"] = map[string]any{"radar": 1}
		}), wantErr: true},
		{name: "not JSON", data: []byte("{"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReport) {
					t.Errorf("expected ErrInvalidReport, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("ValidateReport", func(t *testing.T) {
		t.Parallel()

		if err := ValidateReport(createTestReport(t)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("schema is exposed", func(t *testing.T) {
		t.Parallel()

		if !bytes.Contains(Schema(), []byte(SchemaURL)) {
			t.Error("schema should carry its $id")
		}
	})
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes full report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# deepcheck Report",
			"## Verdict",
			"[!CAUTION]",
			"## Channels",
			"```mermaid",
			"Anomalies per Channel",
			"### Score Breakdown",
			"### Video Statistics",
			"sharpness_mean",
			model.KindEdgeCheckerboard.Title(),
			"deepcheck-rules/1",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("no anomalies", func(t *testing.T) {
		t.Parallel()

		report := createTestReport(t)
		report.Anomalies = []model.Anomaly{}
		report.ConfidenceScore = 0
		report.IsLikelySynthetic = false
		for i := range report.Channels {
			report.Channels[i].Anomalies = []model.Anomaly{}
		}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "No anomalies detected.") || !strings.Contains(output, "[!TIP]") {
			t.Error("expected clean report")
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("no chart without anomalies")
		}
	})

	t.Run("simple report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteSimple(model.NewSimpleReport(createTestReport(t))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "## Strongest Anomalies") {
			t.Error("expected top anomalies section")
		}
	})
}

// TestMultiWriter tests writing to several destinations.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := m.Write(createTestReport(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("total %d does not match %d", n, text.Len()+js.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		m := NewMultiWriter(NewJSONWriter(errWriter{}), NewJSONWriter(&after))
		if _, err := m.WriteSimple(model.NewSimpleReport(createTestReport(t))); err == nil {
			t.Error("expected error")
		}
		if after.Len() != 0 {
			t.Error("later writers must not run after an error")
		}
	})
}

// TestSummarize tests batch summary counting.
func TestSummarize(t *testing.T) {
	t.Parallel()

	synthetic := createTestReport(t)
	synthetic.ConfidenceScore = 0.8
	authentic := createTestReport(t)
	authentic.ConfidenceScore = 0.2
	authentic.IsLikelySynthetic = false

	outcomes := []Outcome{
		{Path: "a.mp4", Report: synthetic},
		{Path: "b.mp4", Report: authentic},
		{Path: "c.mp4", Err: fmt.Errorf("aggregate: %w", model.ErrNoEvidenceAvailable)},
		{Path: "d.mp4", Err: model.ErrCancelled},
		{Path: "e.txt", Err: model.ErrUnsupportedFormat},
	}

	s := Summarize(outcomes)
	want := BatchSummary{
		Total: 5, Successful: 2, Errors: 3, Indeterminate: 1, Cancelled: 1,
		LikelySynthetic: 1, LikelyAuthentic: 1, AverageConfidence: (0.8 + 0.2) / 2,
	}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}

	if got := Summarize(nil); got.AverageConfidence != 0 || got.Total != 0 {
		t.Errorf("empty batch: %+v", got)
	}

	var buf bytes.Buffer
	if _, err := WriteBatch(&buf, outcomes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"a.mp4", model.VerdictIndeterminate, model.VerdictCancelled, "ERROR (unsupported_format)", "Average confidence: 0.500"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected batch output to contain %q", want)
		}
	}
}

// TestRenderTable tests table rendering.
func TestRenderTable(t *testing.T) {
	t.Parallel()

	if RenderTable(nil, nil, nil) != "" {
		t.Error("no headers renders nothing")
	}
	out := RenderTable([]string{"ID", "Score"}, [][]string{{"x"}, {"y", "0.9"}}, []Align{AlignLeft, AlignRight})
	if !strings.Contains(out, "ID") || !strings.Contains(out, "0.9") || !strings.Contains(out, "╭") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

// TestLabel tests identifier title-casing.
func TestLabel(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"audio":            "Audio",
		"not_applicable":   "Not Applicable",
		"no-video-channel": "No Video Channel",
	}
	for in, want := range tests {
		if got := label(in); got != want {
			t.Errorf("label(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestTruncateString tests string truncation.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long note", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
