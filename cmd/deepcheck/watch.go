package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/database"
	"github.com/nao1215/deepcheck/internal/pipeline"
	"github.com/nao1215/deepcheck/internal/report"
	"github.com/nao1215/deepcheck/internal/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory>...",
		Short: "Analyze media files as they appear in directories",
		Long: `Watch monitors directories and analyzes every supported media file that
is created or rewritten there, once it has stopped changing for the settle
interval. Each result is printed as one line and stored in the history
database.

Examples:
  # Watch an upload directory
  deepcheck watch ./incoming

  # Also analyze the files already present, wait 5s for copies to finish
  deepcheck watch --existing --settle 5s ./incoming`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatchCmd,
	}

	addAnalysisFlags(cmd)
	cmd.Flags().Duration("settle", watch.DefaultSettle,
		"Time a file must stay unchanged before it is analyzed")
	cmd.Flags().Bool("existing", false,
		"Also analyze supported files already present in the directories")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyAnalysisFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Analysis.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	settle, err := cmd.Flags().GetDuration("settle")
	if err != nil {
		return err
	}
	existing, err := cmd.Flags().GetBool("existing")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

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

	w, err := watch.New(args,
		watch.WithSettle(settle),
		watch.WithExisting(existing),
		watch.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %d directories (Ctrl+C to stop)...\n", len(w.Dirs()))
	return watchLoop(ctx, w, engine, db, cfg, logger, cmd.OutOrStdout())
}

// watchLoop analyzes each settled file until ctx ends. Files are analyzed one
// at a time; the engine already parallelizes within a file.
func watchLoop(ctx context.Context, w *watch.Watcher, analyzer pipeline.Analyzer, db *database.ReportDB, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	paths := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx, paths) }()

	for {
		select {
		case <-ctx.Done():
			return <-errCh
		case err := <-errCh:
			return err
		case path := <-paths:
			analyzeWatched(ctx, path, analyzer, db, cfg.Timeout, logger, out)
		}
	}
}

func analyzeWatched(ctx context.Context, path string, analyzer pipeline.Analyzer, db *database.ReportDB, timeout time.Duration, logger *slog.Logger, out io.Writer) {
	fileCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rep, err := analyzer.Analyze(fileCtx, path)
	saveOutcome(ctx, db, path, rep, err, logger)

	stamp := time.Now().Format("15:04:05")
	if err != nil {
		fmt.Fprintf(out, "%s  %s: %s\n", stamp, filepath.Base(path), report.ErrorVerdict(err))
		return
	}
	fmt.Fprintf(out, "%s  %s: %s (%.3f, %d anomalies)\n", stamp, filepath.Base(path),
		rep.Verdict(), rep.ConfidenceScore, len(rep.Anomalies))
}
