package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/database"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/pipeline"
	"github.com/nao1215/deepcheck/internal/report"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [media-file...]",
		Short: "Analyze media files for signs of synthesis or manipulation",
		Long: `Analyze runs the audio, video and metadata channels over each file and
combines their anomalies into a confidence score and a verdict.

A file for which no channel could produce evidence is reported as
INDETERMINATE. Interrupting the run reports the unfinished files as CANCELLED.

Examples:
  # Analyze a single file
  deepcheck analyze interview.mp4

  # Only look at the audio track and the metadata
  deepcheck analyze --only audio,metadata voice.m4a

  # Analyze every supported file of a directory, one JSON report per file
  deepcheck analyze --dir ./evidence --output-dir ./reports

  # Stricter verdict threshold and a Markdown report
  deepcheck analyze --threshold 0.6 --markdown -o report.md clip.mov

Configuration file (.deepcheck) example:
  analysis:
    scoring:
      threshold: 0.55
      channel_weights:
        audio: 0.3
        video: 0.5
        metadata: 0.2
    audio:
      window_size: 4096`,
		Args: cobra.ArbitraryArgs,
		RunE: runAnalyzeCmd,
	}

	addAnalysisFlags(cmd)

	cmd.Flags().StringP("dir", "d", "",
		"Analyze every supported media file in this directory")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of files analyzed concurrently")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report of a single file to this path (creates directories if needed)")
	cmd.Flags().StringP("output-dir", "O", "",
		"Write one <name>_report.json per file into this directory")
	cmd.Flags().BoolP("all", "a", false,
		"List every anomaly in the text report, not only the strongest")

	return cmd
}

// runAnalyzeCmd executes the analyze command.
func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext()
	defer cancel()

	return runAnalyze(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from the configuration file and cobra flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if err := applyAnalysisFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = cmd.Flags().GetString("output-dir"); err != nil {
		return nil, err
	}
	if cfg.ShowAllAnomalies, err = cmd.Flags().GetBool("all"); err != nil {
		return nil, err
	}

	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	cfg.Targets, err = collectTargets(args, dir)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// collectTargets returns the explicit file arguments followed by the
// supported media files of dir in name order. Subdirectories are not entered.
func collectTargets(args []string, dir string) ([]string, error) {
	targets := append([]string(nil), args...)
	if dir == "" {
		return targets, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || !model.IsSupported(path) {
			continue
		}
		targets = append(targets, path)
	}
	return targets, nil
}

// runAnalyze executes the analysis of every target.
func runAnalyze(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	logger.Info("starting analysis",
		"targets", len(cfg.Targets),
		"batchSize", cfg.BatchSize,
		"threshold", cfg.Analysis.Scoring.Threshold,
		"saveToDB", cfg.SaveToDB,
	)

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	if len(cfg.Targets) == 1 && cfg.OutputDir == "" {
		return runSingle(ctx, cfg, engine, db, logger, out)
	}
	return runBatch(ctx, cfg, engine, db, logger, out)
}

// runSingle analyzes one file and prints its full report.
func runSingle(ctx context.Context, cfg *config.Config, analyzer pipeline.Analyzer, db *database.ReportDB, logger *slog.Logger, out io.Writer) error {
	path := cfg.Targets[0]

	fileCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	rep, err := analyzer.Analyze(fileCtx, path)
	saveOutcome(ctx, db, path, rep, err, logger)
	if err != nil {
		fmt.Fprintf(out, "%s: %s\n", filepath.Base(path), report.ErrorVerdict(err))
		return fmt.Errorf("analysis of %s ended without a report: %w", path, err)
	}

	return outputReport(cfg, rep, out)
}

// runBatch analyzes several files concurrently and prints a summary table.
func runBatch(ctx context.Context, cfg *config.Config, analyzer pipeline.Analyzer, db *database.ReportDB, logger *slog.Logger, out io.Writer) error {
	fmt.Fprintf(out, "Analyzing %d files (concurrency: %d)...\n\n", len(cfg.Targets), cfg.BatchSize)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(analyzer,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithFileTimeout(cfg.Timeout),
		pipeline.WithBatchLogger(logger),
	)

	outcomes := make([]report.Outcome, len(cfg.Targets))
	var (
		mu   sync.Mutex
		done int
	)
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r pipeline.BatchResult, index int) {
		outcomes[index] = report.Outcome{Path: r.Path, Report: r.Report, Err: r.Err}
		saveOutcome(ctx, db, r.Path, r.Report, r.Err, logger)

		mu.Lock()
		defer mu.Unlock()
		done++

		if r.Err != nil {
			fmt.Fprintf(out, "[%d/%d] %s: %s\n", done, len(cfg.Targets), filepath.Base(r.Path), report.ErrorVerdict(r.Err))
			return
		}
		fmt.Fprintf(out, "[%d/%d] %s: %s (%.3f)\n", done, len(cfg.Targets), filepath.Base(r.Path),
			r.Report.Verdict(), r.Report.ConfidenceScore)

		if cfg.OutputDir != "" {
			if err := writeReportFile(cfg, r.Report); err != nil {
				logger.Error("failed to write report", "file", r.Path, "error", err)
			}
		}
	})

	fmt.Fprintln(out)
	if _, werr := report.WriteBatch(out, outcomes); werr != nil {
		return werr
	}
	fmt.Fprintf(out, "\nBatch analysis completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return err
}

// reportFileName returns the per-file report name: the media file stem plus
// _report and the extension of the selected format.
func reportFileName(mediaPath string, markdown bool) string {
	base := filepath.Base(mediaPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if markdown {
		return stem + "_report.md"
	}
	return stem + "_report.json"
}

// writeReportFile writes the report of one batch file into the output directory.
func writeReportFile(cfg *config.Config, rep *model.AnalysisReport) error {
	path := filepath.Join(cfg.OutputDir, reportFileName(rep.Asset.Path, cfg.MarkdownReport))
	f, err := createOutputFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var w report.Writer = report.NewJSONWriter(f, report.WithPrettyPrint())
	if cfg.MarkdownReport {
		w = report.NewMarkdownWriter(f)
	}
	_, err = w.Write(rep)
	return err
}

// createOutputFile creates path and its parent directories. Reports may hold
// file paths and metadata, so the file is readable by the owner only.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-chosen output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// outputReport outputs the report in the requested format.
func outputReport(cfg *config.Config, rep *model.AnalysisReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		f, err := createOutputFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.ShowAllAnomalies))
	}
	_, err := w.Write(rep)
	return err
}
