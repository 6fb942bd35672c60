package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/scoring"
)

// MarkdownWriter outputs reports in Markdown format for documentation and
// case files.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format, including every anomaly
// and the channel summaries.
func (w *MarkdownWriter) Write(report *model.AnalysisReport) (int, error) {
	simple := model.NewSimpleReport(report)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, simple, &report.Asset)
	w.writeVerdict(md, simple)
	w.writeChannels(md, simple)
	w.writeBreakdown(md, report)
	w.writeAnomalies(md, "Anomalies", report.Anomalies)
	w.writeChannelDetails(md, report)
	w.writeFooter(md, report.Version)

	return len(md.String()), md.Build()
}

// WriteSimple outputs the simple report in Markdown format.
func (w *MarkdownWriter) WriteSimple(report *model.SimpleReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report, nil)
	w.writeVerdict(md, report)
	w.writeChannels(md, report)
	w.writeAnomalies(md, "Strongest Anomalies", report.TopAnomalies)
	w.writeFooter(md, "")

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the file properties table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SimpleReport, asset *model.MediaAsset) {
	md.H1("deepcheck Report")
	md.PlainText("")

	rows := [][]string{
		{"File", "`" + report.Path + "`"},
		{"Analyzed", report.AnalyzedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if asset != nil {
		rows = append(rows,
			[]string{"Media Kind", label(string(asset.Kind))},
			[]string{"Container", orDash(asset.FormatName)},
			[]string{"Duration", fmt.Sprintf("%.2fs", asset.DurationSeconds)},
			[]string{"Fingerprint", "`" + asset.Fingerprint + "`"},
		)
		if asset.Width > 0 {
			rows = append(rows, []string{"Resolution", fmt.Sprintf("%dx%d", asset.Width, asset.Height)})
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeVerdict writes the score, verdict alert and severity breakdown.
func (w *MarkdownWriter) writeVerdict(md *markdown.Markdown, report *model.SimpleReport) {
	md.H2("Verdict")
	md.PlainText("")

	text := fmt.Sprintf("**%s**: confidence %.3f against threshold %.2f.",
		report.Verdict, report.ConfidenceScore, report.Threshold)
	switch {
	case report.ConfidenceScore >= report.Threshold:
		md.Cautionf("%s", text)
	case report.ConfidenceScore >= report.Threshold/2:
		md.Warningf("%s", text)
	default:
		md.Tip(text)
	}
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(report.CriticalCount)},
			{"🟠 High", strconv.Itoa(report.HighCount)},
			{"🟡 Medium", strconv.Itoa(report.MediumCount)},
			{"🔵 Low", strconv.Itoa(report.LowCount)},
			{"⚪ Info", strconv.Itoa(report.InfoCount)},
			{"**Total**", "**" + strconv.Itoa(report.TotalAnomalies()) + "**"},
		},
	})
	md.PlainText("")

	if report.HasAnomalies() {
		w.writePieChart(md, report)
	}
}

// writePieChart writes a mermaid pie chart of anomalies per channel.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SimpleReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Anomalies per Channel"),
		piechart.WithShowData(true),
	)
	for _, c := range report.Channels {
		if c.AnomalyCount > 0 {
			chart.LabelAndIntValue(label(string(c.Channel)), uint64(c.AnomalyCount))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeChannels writes the per-channel status table.
func (w *MarkdownWriter) writeChannels(md *markdown.Markdown, report *model.SimpleReport) {
	md.H2("Channels")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Channels))
	for _, c := range report.Channels {
		score, weight := "-", "-"
		if c.Status == model.StatusSucceeded {
			score = strconv.FormatFloat(c.SubScore, 'f', 3, 64)
			weight = strconv.FormatFloat(c.Weight, 'f', 3, 64)
		}
		rows = append(rows, []string{
			label(string(c.Channel)),
			statusText(c.Status),
			score,
			weight,
			strconv.Itoa(c.AnomalyCount),
			strconv.Itoa(c.Units),
			orDash(c.Reason),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Channel", "Status", "Sub-score", "Weight", "Anomalies", "Units", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText decorates a channel status.
func statusText(s model.ChannelStatus) string {
	switch s {
	case model.StatusSucceeded:
		return "✅ " + label(string(s))
	case model.StatusFailed:
		return "❌ " + label(string(s))
	default:
		return "➖ " + label(string(s))
	}
}

// writeAnomalies writes a table of anomalies, most severe first.
func (w *MarkdownWriter) writeAnomalies(md *markdown.Markdown, title string, anomalies []model.Anomaly) {
	md.H2(title)
	md.PlainText("")

	if len(anomalies) == 0 {
		md.PlainText("No anomalies detected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(anomalies))
	for i, a := range anomalies {
		rows[i] = []string{
			a.Level().String(),
			a.Kind.Title(),
			label(string(a.Channel)),
			location(a),
			strconv.FormatFloat(a.Severity, 'f', 2, 64),
			truncateString(orDash(a.Note), 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Level", "Kind", "Channel", "Location", "Severity", "Note"},
		Rows:   rows,
	})
	md.PlainText("")

	seen := make(map[model.AnomalyKind]bool)
	for _, a := range anomalies {
		if seen[a.Kind] {
			continue
		}
		seen[a.Kind] = true
		if info, ok := model.GetKindInfo(a.Kind); ok && info.Description != "" {
			md.Details(info.Title, info.Description)
		}
	}
	md.PlainText("")
}

// writeBreakdown writes how much each available channel adds to the score.
func (w *MarkdownWriter) writeBreakdown(md *markdown.Markdown, report *model.AnalysisReport) {
	contrib := scoring.Contributions(report)
	if len(contrib) == 0 {
		return
	}
	md.H3("Score Breakdown")
	md.PlainText("")
	rows := make([][]string, 0, len(contrib))
	for _, ch := range model.Channels() {
		c, ok := contrib[ch]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			label(string(ch)),
			strconv.FormatFloat(report.EffectiveWeights[ch], 'f', 3, 64),
			strconv.FormatFloat(c, 'f', 3, 64),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Channel", "Effective Weight", "Contribution"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeChannelDetails writes the descriptive statistics of each channel.
func (w *MarkdownWriter) writeChannelDetails(md *markdown.Markdown, report *model.AnalysisReport) {
	for _, c := range report.Channels {
		if len(c.Summary) == 0 {
			continue
		}
		md.H3(label(string(c.Channel)) + " Statistics")
		md.PlainText("")
		rows := make([][]string, 0, len(c.Summary))
		for _, k := range slices.Sorted(maps.Keys(c.Summary)) {
			rows = append(rows, []string{k, strconv.FormatFloat(c.Summary[k], 'g', 6, 64)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Statistic", "Value"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown, version string) {
	md.HorizontalRule()
	md.PlainText("")
	if version != "" {
		md.PlainTextf("*Generated by deepcheck with rule set `%s`. Forensic cues only; a high score is evidence, not proof.*", version)
		return
	}
	md.PlainText("*Generated by deepcheck. Forensic cues only; a high score is evidence, not proof.*")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
