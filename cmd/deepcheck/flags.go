package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/deepcheck/internal/config"
	"github.com/nao1215/deepcheck/internal/database"
	"github.com/nao1215/deepcheck/internal/log"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/pipeline"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getGlobalString retrieves a persistent string flag from the command or its root.
func getGlobalString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// loadConfig builds the run configuration from defaults, the configuration
// file and the global flags. The returned file is nil when none was found.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.File, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ConfigFilePath = getGlobalString(cmd, "config")

	// An explicitly named file must exist; the default lookup may find nothing.
	var file *config.File
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.Apply(cfg)
		file = cf
	case cfg.ConfigFilePath != "":
		return nil, nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if dir := getGlobalString(cmd, "db-dir"); dir != "" {
		cfg.DBDir = dir
	}
	return cfg, file, nil
}

// addAnalysisFlags registers the flags shared by every command that analyzes files.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Deadline for the analysis of each file")
	cmd.Flags().Float64("threshold", 0,
		"Verdict threshold on the confidence score, within [0,1] (default from config: 0.5)")
	cmd.Flags().Int("window-size", 0,
		"Audio analysis window in samples, a power of two (default from config: 2048)")
	cmd.Flags().Int("concurrency", 0,
		"Maximum number of channel analyzers running at once per file (default from config: 3)")
	cmd.Flags().StringSlice("only", nil,
		"Restrict analysis to these channels: audio, video, metadata")
	cmd.Flags().Bool("no-save", false,
		"Do not store reports in the history database")
}

// applyAnalysisFlags copies the analysis flags into cfg. Flags override the
// configuration file only when they were given on the command line.
func applyAnalysisFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	flags := cmd.Flags()

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if flags.Changed("threshold") {
		if cfg.Analysis.Scoring.Threshold, err = flags.GetFloat64("threshold"); err != nil {
			return err
		}
	}
	if flags.Changed("window-size") {
		if cfg.Analysis.Audio.WindowSize, err = flags.GetInt("window-size"); err != nil {
			return err
		}
	}
	if flags.Changed("concurrency") {
		if cfg.Analysis.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if cfg.Only, err = flags.GetStringSlice("only"); err != nil {
		return err
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return err
	}
	if noSave {
		cfg.SaveToDB = false
	}
	return nil
}

// setupLogger creates a sanitizing text logger based on verbosity setting.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newEngine creates the analysis engine for cfg.
func newEngine(cfg *config.Config, logger *slog.Logger) (*pipeline.Engine, error) {
	channels, err := config.ParseChannels(cfg.Only)
	if err != nil {
		return nil, err
	}
	return pipeline.NewEngine(cfg.Analysis,
		pipeline.WithEngineLogger(logger),
		pipeline.WithChannels(channels),
	), nil
}

// openStore opens the history database, or returns nil when saving is disabled.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.ReportDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "dir", cfg.DBDir)
	return db, nil
}

// openHistory opens an existing history database for read-only commands.
func openHistory(cmd *cobra.Command) (*database.ReportDB, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// isRecordable reports whether a failed run belongs in the failure history.
// Files that were never analyzable are not recorded.
func isRecordable(err error) bool {
	return err != nil &&
		!errors.Is(err, model.ErrUnsupportedFormat) &&
		!errors.Is(err, os.ErrNotExist)
}

// saveOutcome stores a report or a recordable failure. It is a no-op when db is nil.
func saveOutcome(ctx context.Context, db *database.ReportDB, path string, rep *model.AnalysisReport, runErr error, logger *slog.Logger) {
	if db == nil {
		return
	}
	// Store even when the run itself was cancelled.
	ctx = context.WithoutCancel(ctx)
	if runErr == nil && rep != nil {
		if err := db.SaveReport(ctx, rep); err != nil {
			logger.Error("failed to save report", "file", path, "error", err)
			return
		}
		logger.Info("report saved to database", "file", path, "id", rep.ID)
		return
	}
	if !isRecordable(runErr) {
		return
	}
	if err := db.RecordFailure(ctx, model.MediaAsset{Path: path}, runErr, time.Now()); err != nil {
		logger.Error("failed to record failure", "file", path, "error", err)
	}
}
