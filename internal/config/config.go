package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values for a run.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "deepcheck"

	// DefaultTimeout bounds the wall-clock time of a single file analysis.
	// Decoding a long video at the default sample count stays well inside it.
	DefaultTimeout = 10 * time.Minute

	// DefaultBatchSize is the number of files analyzed concurrently in batch mode.
	// Each file already fans out into three channels plus per-window workers,
	// so this stays small.
	DefaultBatchSize = 2

	// DefaultListenAddress is the address used by the serve command.
	DefaultListenAddress = "127.0.0.1:8080"
)

// Config holds all run options for deepcheck.
// It is populated from CLI flags and the optional YAML file and passed down
// explicitly; nothing reads configuration from global state.
type Config struct {
	// Analysis holds every tunable of the analyzers and the aggregator.
	Analysis Analysis

	// Timeout is the per-file analysis deadline.
	Timeout time.Duration

	// BatchSize is the number of files analyzed concurrently.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .deepcheck is searched in the current directory and then
	// the user's home directory.
	ConfigFilePath string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ShowAllAnomalies lists every anomaly in the text report instead of the
	// strongest ones.
	ShowAllAnomalies bool

	// ReportFile writes the report of a single-file run to this path.
	ReportFile string

	// OutputDir receives one <stem>_report.json per file in batch mode.
	OutputDir string

	// Targets is the list of media files to analyze.
	Targets []string

	// Only restricts analysis to these channels. Empty means all channels.
	Only []string

	// DBDir is the directory of the SQLite history database.
	// Defaults to the XDG data directory (~/.local/share/deepcheck on Linux).
	DBDir string

	// SaveToDB stores every report in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Analysis:  DefaultAnalysis(),
		Timeout:   DefaultTimeout,
		BatchSize: DefaultBatchSize,
		DBDir:     XDGDataDir(),
		SaveToDB:  true,
	}
}

// XDGDataDir returns the XDG data directory for deepcheck.
// On Linux: ~/.local/share/deepcheck
// On macOS: ~/Library/Application Support/deepcheck
// On Windows: %LOCALAPPDATA%\deepcheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for deepcheck.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first sentinel error found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.ReportFile != "" && c.OutputDir != "" {
		return ErrConflictingOutputs
	}

	if _, err := ParseChannels(c.Only); err != nil {
		return err
	}

	return c.Analysis.Validate()
}
