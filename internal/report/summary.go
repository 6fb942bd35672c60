package report

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nao1215/deepcheck/internal/model"
)

// Outcome is the result of analyzing one file of a batch.
// Exactly one of Report and Err is set.
type Outcome struct {
	Path   string
	Report *model.AnalysisReport
	Err    error
}

// BatchSummary aggregates the outcomes of a batch run.
type BatchSummary struct {
	Total             int     `json:"total"`
	Successful        int     `json:"successful"`
	Errors            int     `json:"errors"`
	Indeterminate     int     `json:"indeterminate"`
	Cancelled         int     `json:"cancelled"`
	LikelySynthetic   int     `json:"likely_synthetic"`
	LikelyAuthentic   int     `json:"likely_authentic"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Summarize counts verdicts and failures over outcomes. Indeterminate and
// cancelled runs are counted as errors as well as in their own bucket.
func Summarize(outcomes []Outcome) BatchSummary {
	s := BatchSummary{Total: len(outcomes)}
	var sum float64
	for _, o := range outcomes {
		if o.Err != nil || o.Report == nil {
			s.Errors++
			switch {
			case errors.Is(o.Err, model.ErrNoEvidenceAvailable):
				s.Indeterminate++
			case errors.Is(o.Err, model.ErrCancelled):
				s.Cancelled++
			}
			continue
		}
		s.Successful++
		sum += o.Report.ConfidenceScore
		if o.Report.IsLikelySynthetic {
			s.LikelySynthetic++
		} else {
			s.LikelyAuthentic++
		}
	}
	if s.Successful > 0 {
		s.AverageConfidence = sum / float64(s.Successful)
	}
	return s
}

// ErrorVerdict returns the label printed for a run that ended without a report.
func ErrorVerdict(err error) string {
	switch {
	case errors.Is(err, model.ErrNoEvidenceAvailable):
		return model.VerdictIndeterminate
	case errors.Is(err, model.ErrCancelled):
		return model.VerdictCancelled
	default:
		return "ERROR (" + model.ErrorKindOf(err) + ")"
	}
}

// Align selects the alignment of a table column.
type Align int

const (
	// AlignLeft left-aligns a column.
	AlignLeft Align = iota
	// AlignRight right-aligns a column, used for numbers.
	AlignRight
)

// RenderTable renders rows as a rounded box table. Short rows are padded.
func RenderTable(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// WriteBatch writes one table row per outcome followed by the batch summary.
func WriteBatch(w io.Writer, outcomes []Outcome) (int, error) {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		name := filepath.Base(o.Path)
		if o.Err != nil || o.Report == nil {
			rows = append(rows, []string{name, ErrorVerdict(o.Err), "-", "-", "-"})
			continue
		}
		rows = append(rows, []string{
			name,
			o.Report.Verdict(),
			strconv.FormatFloat(o.Report.ConfidenceScore, 'f', 3, 64),
			strconv.Itoa(len(o.Report.Anomalies)),
			strconv.Itoa(len(o.Report.AvailableChannels())),
		})
	}

	s := Summarize(outcomes)
	out := RenderTable(
		[]string{"File", "Verdict", "Confidence", "Anomalies", "Channels"},
		rows,
		[]Align{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight},
	)
	out += fmt.Sprintf("\n\nTotal: %d  Successful: %d  Errors: %d  (indeterminate %d, cancelled %d)\n",
		s.Total, s.Successful, s.Errors, s.Indeterminate, s.Cancelled)
	out += fmt.Sprintf("Likely synthetic: %d  Likely authentic: %d  Average confidence: %.3f\n",
		s.LikelySynthetic, s.LikelyAuthentic, s.AverageConfidence)
	return io.WriteString(w, out)
}
