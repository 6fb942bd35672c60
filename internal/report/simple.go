package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/deepcheck/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// It uses plain ASCII formatting so the output can be piped to files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no anomalies are shown.
	showEmpty bool

	// verbose lists every anomaly with its measured value.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report in human-readable format.
// In verbose mode every anomaly is listed, otherwise only the strongest ones.
func (w *SimpleWriter) Write(report *model.AnalysisReport) (int, error) {
	simple := model.NewSimpleReport(report)
	if w.verbose {
		simple.TopAnomalies = report.Anomalies
	}

	var sb strings.Builder
	w.writeHeader(&sb, simple)
	fmt.Fprintf(&sb, "Report ID:      %s\n", report.ID)
	fmt.Fprintf(&sb, "Media Kind:     %s\n", report.Asset.Kind)
	if report.Asset.FormatName != "" {
		fmt.Fprintf(&sb, "Container:      %s\n", report.Asset.FormatName)
	}
	if report.Asset.DurationSeconds > 0 {
		fmt.Fprintf(&sb, "Duration:       %.2fs\n", report.Asset.DurationSeconds)
	}
	if report.Asset.Width > 0 {
		fmt.Fprintf(&sb, "Resolution:     %dx%d\n", report.Asset.Width, report.Asset.Height)
	}
	fmt.Fprintf(&sb, "Fingerprint:    %s\n", report.Asset.Fingerprint)
	fmt.Fprintf(&sb, "Rules:          %s (%d ms)\n\n", report.Version, report.ElapsedMS)
	w.writeBody(&sb, simple)
	return w.output.Write([]byte(sb.String()))
}

// WriteSimple outputs the simple report in human-readable format.
func (w *SimpleWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, report)
	sb.WriteString("\n")
	w.writeBody(&sb, report)
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeBody(sb *strings.Builder, report *model.SimpleReport) {
	w.writeVerdict(sb, report)
	w.writeChannels(sb, report)
	w.writeSummary(sb, report)
	w.writeAnomalies(sb, report)
	w.writeFooter(sb)
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

// writeHeader writes the report header with file information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SimpleReport) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                         DEEPCHECK REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "File:           %s\n", report.Path)
	fmt.Fprintf(sb, "Analyzed:       %s\n", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST"))
}

// writeVerdict writes the confidence score and verdict.
func (w *SimpleWriter) writeVerdict(sb *strings.Builder, report *model.SimpleReport) {
	section(sb, "VERDICT")
	fmt.Fprintf(sb, "  %s\n", report.Verdict)
	fmt.Fprintf(sb, "  Confidence: %.3f (threshold %.2f)\n", report.ConfidenceScore, report.Threshold)
	fmt.Fprintf(sb, "  %s\n\n", scoreBar(report.ConfidenceScore, 40))
}

// writeChannels writes one line per channel.
func (w *SimpleWriter) writeChannels(sb *strings.Builder, report *model.SimpleReport) {
	section(sb, "CHANNELS")
	for _, c := range report.Channels {
		name := label(string(c.Channel))
		if c.Status != model.StatusSucceeded {
			fmt.Fprintf(sb, "  %-9s %-15s %s\n", name, label(string(c.Status)), c.Reason)
			continue
		}
		fmt.Fprintf(sb, "  %-9s %-15s score %.3f  weight %.3f  anomalies %d over %d %s\n",
			name, label(string(c.Status)), c.SubScore, c.Weight, c.AnomalyCount, c.Units, unitName(c.Channel))
	}
	sb.WriteString("\n")
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.SimpleReport) {
	if !report.HasAnomalies() && !w.showEmpty {
		return
	}
	section(sb, "SEVERITY SUMMARY")
	fmt.Fprintf(sb, "  CRITICAL: %d\n", report.CriticalCount)
	fmt.Fprintf(sb, "  HIGH:     %d\n", report.HighCount)
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", report.MediumCount)
	fmt.Fprintf(sb, "  LOW:      %d\n", report.LowCount)
	fmt.Fprintf(sb, "  INFO:     %d\n\n", report.InfoCount)
	fmt.Fprintf(sb, "  TOTAL:    %d anomalies\n\n", report.TotalAnomalies())
}

// writeAnomalies lists the anomalies carried by the simple report.
func (w *SimpleWriter) writeAnomalies(sb *strings.Builder, report *model.SimpleReport) {
	if len(report.TopAnomalies) == 0 {
		if w.showEmpty {
			section(sb, "ANOMALIES")
			sb.WriteString("  No anomalies detected\n\n")
		}
		return
	}

	title := "ANOMALIES"
	if len(report.TopAnomalies) < report.TotalAnomalies() {
		title = fmt.Sprintf("STRONGEST ANOMALIES (%d of %d)", len(report.TopAnomalies), report.TotalAnomalies())
	}
	section(sb, title)
	for _, a := range report.TopAnomalies {
		fmt.Fprintf(sb, "  [%s] %s (%s) severity %.2f\n", indicator(a.Level()), a.Kind.Title(), location(a), a.Severity)
		if a.Note != "" {
			fmt.Fprintf(sb, "        %s\n", a.Note)
		}
		if w.verbose {
			fmt.Fprintf(sb, "        measured: %g\n", a.Measured)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Forensic cues only. A high score is evidence, not proof.\n")
	rule(sb, "=")
}

// indicator returns a visual indicator for the severity level.
func indicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// location describes where in the stream an anomaly was found.
func location(a model.Anomaly) string {
	if !a.Windowed() {
		if a.Channel == model.ChannelMetadata {
			return "container"
		}
		return fmt.Sprintf("%s stream", a.Channel)
	}
	unit := "window"
	if a.Channel == model.ChannelVideo {
		unit = "frame"
	}
	return fmt.Sprintf("%s %d at %.2fs", unit, a.Index, a.StartSeconds)
}

// unitName names the analysis unit of a channel.
func unitName(ch model.Channel) string {
	switch ch {
	case model.ChannelAudio:
		return "windows"
	case model.ChannelVideo:
		return "frames"
	default:
		return "files"
	}
}

// scoreBar draws score in [0,1] as a fixed-width bar.
func scoreBar(score float64, width int) string {
	filled := int(model.ClampUnit(score)*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
