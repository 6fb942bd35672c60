package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/database"
	"github.com/nao1215/deepcheck/internal/media"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/report"
)

// Constants for score direction and summary messages.
const (
	directionMoreSuspicious = "more-suspicious"
	directionLessSuspicious = "less-suspicious"
	directionUnchanged      = "unchanged"
	noAnomaliesMessage      = "No anomalies"

	// scoreEpsilon is the smallest confidence change reported as a change.
	scoreEpsilon = 1e-9
)

// NewHistoryCmd creates the history command.
// It reads the reports stored by analyze, serve and watch.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and compare stored analysis reports",
		Long: `History reads the reports stored in the history database.

Assets are identified by the SHA3-256 fingerprint of their content, so a
renamed or moved file keeps its history. Every subcommand that takes an asset
accepts either a media file path or a fingerprint.

Examples:
  # List every analyzed asset
  deepcheck history list

  # List the runs of one file
  deepcheck history list interview.mp4

  # Show a stored report
  deepcheck history show 0b5c6a1e-...

  # Compare the latest two runs of a file
  deepcheck history diff interview.mp4

  # List runs that ended without a report
  deepcheck history failures`,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDiffCmd())
	cmd.AddCommand(newHistoryFailuresCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [media-file|fingerprint]",
		Short: "List analyzed assets or the runs of one asset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if len(args) == 0 {
				return listAssets(ctx, db, cmd.OutOrStdout())
			}
			fingerprint, err := resolveFingerprint(args[0])
			if err != nil {
				return err
			}
			return listRuns(ctx, db, fingerprint, cmd.OutOrStdout())
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <report-id>",
		Short: "Print a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rep, err := db.GetReport(ctx, args[0])
			if err != nil {
				return err
			}
			if rep == nil {
				return fmt.Errorf("report %s not found", args[0])
			}

			jsonOutput, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			markdownOutput, err := cmd.Flags().GetBool("markdown")
			if err != nil {
				return err
			}
			if jsonOutput && markdownOutput {
				return errors.New("--json and --markdown cannot be used together")
			}

			var w report.Writer
			switch {
			case jsonOutput:
				w = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
			case markdownOutput:
				w = report.NewMarkdownWriter(cmd.OutOrStdout())
			default:
				w = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(true))
			}
			_, err = w.Write(rep)
			return err
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output the report as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output the report as Markdown")
	return cmd
}

func newHistoryDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <media-file|fingerprint>",
		Short: "Compare the latest run of an asset with an earlier one",
		Long: `Diff shows how the evidence for an asset changed between two runs:
the confidence score, per-channel sub-scores and the anomaly kinds that
appeared or disappeared. Runs made with a different rule version are
compared as well, but the rule versions are shown so the difference can be
attributed.`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryDiffCmd,
	}
	cmd.Flags().StringP("with-id", "i", "",
		"Compare with a specific report ID (use 'history list' to see IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	return cmd
}

func newHistoryFailuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failures [media-file]",
		Short: "List runs that ended without a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			failures, err := db.Failures(ctx, path)
			if err != nil {
				return err
			}
			return writeFailures(cmd.OutOrStdout(), failures)
		},
	}
}

// resolveFingerprint returns the fingerprint of the file at arg, or arg
// itself when no such file exists.
func resolveFingerprint(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return arg, nil
	}
	fp, _, err := media.Fingerprint(arg)
	if err != nil {
		return "", err
	}
	return fp, nil
}

// shortID abbreviates a fingerprint for display.
func shortID(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// listAssets lists all assets that have reports in the database.
func listAssets(ctx context.Context, db *database.ReportDB, w io.Writer) error {
	assets, err := db.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list assets: %w", err)
	}

	if len(assets) == 0 {
		fmt.Fprintln(w, "No analyzed assets found in the database.")
		fmt.Fprintln(w, "\nUse 'deepcheck analyze <file>' to analyze a media file.")
		return nil
	}

	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			shortID(a.Fingerprint),
			a.LastPath,
			strconv.Itoa(a.Runs),
			a.LastAnalyzedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(a.LastConfidence, 'f', 3, 64),
		})
	}
	fmt.Fprintf(w, "Analyzed assets (%d):\n\n", len(assets))
	fmt.Fprintln(w, report.RenderTable(
		[]string{"Fingerprint", "Last Path", "Runs", "Last Analyzed", "Confidence"},
		rows,
		[]report.Align{report.AlignLeft, report.AlignLeft, report.AlignRight, report.AlignLeft, report.AlignRight},
	))
	fmt.Fprintln(w, "\nUse 'deepcheck history list <file>' to see the runs of an asset.")
	return nil
}

// listRuns lists all reports of one asset.
func listRuns(ctx context.Context, db *database.ReportDB, fingerprint string, w io.Writer) error {
	runs, err := db.History(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No history found for %s\n", shortID(fingerprint))
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, meta := range runs {
		verdict := model.VerdictAuthentic
		if meta.LikelySynthetic {
			verdict = model.VerdictSynthetic
		}
		rows = append(rows, []string{
			meta.ID,
			meta.AnalyzedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(meta.Confidence, 'f', 3, 64),
			verdict,
			formatSeveritySummary(meta.SeveritySummary),
			meta.RuleVersion,
		})
	}

	fmt.Fprintf(w, "History for %s (%d runs):\n\n", shortID(fingerprint), len(runs))
	fmt.Fprintln(w, report.RenderTable(
		[]string{"ID", "Date", "Confidence", "Verdict", "Anomalies", "Rules"},
		rows,
		[]report.Align{report.AlignLeft, report.AlignLeft, report.AlignRight},
	))
	fmt.Fprintln(w, "\nUse 'deepcheck history diff <file>' to compare the latest two runs.")
	return nil
}

// formatSeveritySummary formats the severity summary map into a compact string.
func formatSeveritySummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	for _, level := range []struct {
		key, short string
	}{
		{"critical", "C"},
		{"high", "H"},
		{"medium", "M"},
		{"low", "L"},
		{"info", "I"},
	} {
		if v := summary[level.key]; v > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", level.short, v))
		}
	}

	if len(parts) == 0 {
		return noAnomaliesMessage
	}
	return strings.Join(parts, " ")
}

func writeFailures(w io.Writer, failures []database.Failure) error {
	if len(failures) == 0 {
		_, err := fmt.Fprintln(w, "No failed runs recorded.")
		return err
	}
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{
			f.OccurredAt.Local().Format("2006-01-02 15:04:05"),
			f.Path,
			f.ErrorKind,
			f.Message,
		})
	}
	_, err := fmt.Fprintln(w, report.RenderTable([]string{"Date", "Path", "Kind", "Message"}, rows, nil))
	return err
}

// runHistoryDiffCmd executes the diff subcommand.
func runHistoryDiffCmd(cmd *cobra.Command, args []string) error {
	// Resolve the asset before opening the database so a bad argument
	// does not leave it locked.
	fingerprint, err := resolveFingerprint(args[0])
	if err != nil {
		return err
	}

	withID, err := cmd.Flags().GetString("with-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	previous, current, err := selectRuns(ctx, db, fingerprint, withID)
	if err != nil {
		return err
	}

	comparison := compareReports(previous, current)
	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(comparison)
	}
	return outputComparisonText(cmd.OutOrStdout(), comparison)
}

// selectRuns loads the latest report of an asset and the one to compare it with.
func selectRuns(ctx context.Context, db *database.ReportDB, fingerprint, withID string) (*model.AnalysisReport, *model.AnalysisReport, error) {
	runs, err := db.History(ctx, fingerprint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get history: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("no history found for %s", shortID(fingerprint))
	}
	if len(runs) < 2 && withID == "" {
		return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	current, err := db.GetReport(ctx, runs[0].ID)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, fmt.Errorf("report %s not found", runs[0].ID)
	}

	previousID := withID
	if previousID == "" {
		previousID = runs[1].ID
	}
	if previousID == current.ID {
		return nil, nil, fmt.Errorf("report %s is the latest run; choose an earlier one", previousID)
	}

	previous, err := db.GetReport(ctx, previousID)
	if err != nil {
		return nil, nil, err
	}
	if previous == nil {
		return nil, nil, fmt.Errorf("report %s not found", previousID)
	}
	if previous.Asset.Fingerprint != current.Asset.Fingerprint {
		return nil, nil, fmt.Errorf("report %s belongs to another asset", previousID)
	}
	return previous, current, nil
}

// ComparisonResult holds the result of comparing two reports of one asset.
type ComparisonResult struct {
	Fingerprint     string          `json:"fingerprint"`
	Previous        RunSummary      `json:"previous"`
	Current         RunSummary      `json:"current"`
	ConfidenceDelta float64         `json:"confidence_delta"`
	Direction       string          `json:"direction"`
	VerdictChanged  bool            `json:"verdict_changed"`
	Channels        []ChannelChange `json:"channels"`
	NewKinds        []KindCount     `json:"new_kinds,omitempty"`
	ResolvedKinds   []KindCount     `json:"resolved_kinds,omitempty"`
	UnchangedKinds  int             `json:"unchanged_kinds"`
}

// RunSummary describes one side of a comparison.
type RunSummary struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	Confidence   float64   `json:"confidence"`
	Verdict      string    `json:"verdict"`
	AnomalyCount int       `json:"anomaly_count"`
	RuleVersion  string    `json:"rule_version"`
}

// ChannelChange is the change of one channel between two runs.
type ChannelChange struct {
	Channel        model.Channel       `json:"channel"`
	PreviousStatus model.ChannelStatus `json:"previous_status"`
	CurrentStatus  model.ChannelStatus `json:"current_status"`
	PreviousScore  float64             `json:"previous_score"`
	CurrentScore   float64             `json:"current_score"`
}

// KindCount is an anomaly kind with its number of occurrences.
type KindCount struct {
	Kind  model.AnomalyKind `json:"kind"`
	Count int               `json:"count"`
}

func summarizeRun(r *model.AnalysisReport) RunSummary {
	return RunSummary{
		ID:           r.ID,
		Path:         r.Asset.Path,
		AnalyzedAt:   r.AnalyzedAt,
		Confidence:   r.ConfidenceScore,
		Verdict:      r.Verdict(),
		AnomalyCount: len(r.Anomalies),
		RuleVersion:  r.Version,
	}
}

// compareReports compares two reports of the same asset.
func compareReports(previous, current *model.AnalysisReport) *ComparisonResult {
	result := &ComparisonResult{
		Fingerprint:     current.Asset.Fingerprint,
		Previous:        summarizeRun(previous),
		Current:         summarizeRun(current),
		ConfidenceDelta: current.ConfidenceScore - previous.ConfidenceScore,
		VerdictChanged:  previous.IsLikelySynthetic != current.IsLikelySynthetic,
	}

	switch {
	case result.ConfidenceDelta > scoreEpsilon:
		result.Direction = directionMoreSuspicious
	case result.ConfidenceDelta < -scoreEpsilon:
		result.Direction = directionLessSuspicious
	default:
		result.Direction = directionUnchanged
		result.ConfidenceDelta = 0
	}

	for _, ch := range model.Channels() {
		prev, _ := previous.Channel(ch)
		cur, _ := current.Channel(ch)
		result.Channels = append(result.Channels, ChannelChange{
			Channel:        ch,
			PreviousStatus: prev.Status,
			CurrentStatus:  cur.Status,
			PreviousScore:  prev.Score(),
			CurrentScore:   cur.Score(),
		})
	}

	prevKinds := previous.AnomalyCountByKind()
	curKinds := current.AnomalyCountByKind()
	for _, kind := range slices.Sorted(maps.Keys(curKinds)) {
		if _, ok := prevKinds[kind]; !ok {
			result.NewKinds = append(result.NewKinds, KindCount{Kind: kind, Count: curKinds[kind]})
		} else {
			result.UnchangedKinds++
		}
	}
	for _, kind := range slices.Sorted(maps.Keys(prevKinds)) {
		if _, ok := curKinds[kind]; !ok {
			result.ResolvedKinds = append(result.ResolvedKinds, KindCount{Kind: kind, Count: prevKinds[kind]})
		}
	}

	return result
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(w io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run Comparison: %s\n", shortID(result.Fingerprint))
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&sb, "\nEvidence: %s\n", formatDirection(result.Direction))
	if result.VerdictChanged {
		fmt.Fprintf(&sb, "Verdict changed: %s -> %s\n", result.Previous.Verdict, result.Current.Verdict)
	}
	if result.Previous.RuleVersion != result.Current.RuleVersion {
		fmt.Fprintf(&sb, "Rule version changed: %s -> %s\n", result.Previous.RuleVersion, result.Current.RuleVersion)
	}

	fmt.Fprintf(&sb, "\nPrevious run: %s  %s\n", result.Previous.ID, result.Previous.AnalyzedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current run:  %s  %s\n\n", result.Current.ID, result.Current.AnalyzedAt.Local().Format("2006-01-02 15:04:05"))

	rows := [][]string{{
		"confidence",
		"",
		"",
		strconv.FormatFloat(result.Previous.Confidence, 'f', 3, 64),
		strconv.FormatFloat(result.Current.Confidence, 'f', 3, 64),
		formatScoreDelta(result.ConfidenceDelta),
	}}
	for _, c := range result.Channels {
		rows = append(rows, []string{
			string(c.Channel),
			string(c.PreviousStatus),
			string(c.CurrentStatus),
			strconv.FormatFloat(c.PreviousScore, 'f', 3, 64),
			strconv.FormatFloat(c.CurrentScore, 'f', 3, 64),
			formatScoreDelta(c.CurrentScore - c.PreviousScore),
		})
	}
	sb.WriteString(report.RenderTable(
		[]string{"Score", "Previous Status", "Current Status", "Previous", "Current", "Change"},
		rows,
		[]report.Align{report.AlignLeft, report.AlignLeft, report.AlignLeft, report.AlignRight, report.AlignRight, report.AlignRight},
	))
	sb.WriteString("\n")

	if len(result.NewKinds) > 0 {
		fmt.Fprintf(&sb, "\nNew Anomaly Kinds (%d):\n", len(result.NewKinds))
		for _, k := range result.NewKinds {
			fmt.Fprintf(&sb, "  [+] %s (%d)\n", k.Kind.Title(), k.Count)
		}
	}

	if len(result.ResolvedKinds) > 0 {
		fmt.Fprintf(&sb, "\nResolved Anomaly Kinds (%d):\n", len(result.ResolvedKinds))
		for _, k := range result.ResolvedKinds {
			fmt.Fprintf(&sb, "  [-] %s (%d)\n", k.Kind.Title(), k.Count)
		}
	}

	if result.UnchangedKinds > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d anomaly kinds\n", result.UnchangedKinds)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatDirection formats the score direction for display.
func formatDirection(direction string) string {
	switch direction {
	case directionMoreSuspicious:
		return "STRONGER (confidence increased)"
	case directionLessSuspicious:
		return "WEAKER (confidence decreased)"
	default:
		return "UNCHANGED"
	}
}

// formatScoreDelta formats a score delta with sign for display.
func formatScoreDelta(delta float64) string {
	if math.Abs(delta) <= scoreEpsilon {
		return "0"
	}
	s := strconv.FormatFloat(delta, 'f', 3, 64)
	if delta > 0 {
		return "+" + s
	}
	return s
}
