package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/deepcheck/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "deepcheck.db"

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02 15:04:05.000000000"

// ReportDB provides SQLite-based storage for analysis reports.
type ReportDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ReportDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the writer.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ReportDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ReportDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run an analysis first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ReportDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *ReportDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *ReportDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ReportDB) createTables() error {
	schema := `
	-- Completed analyses, one row per report
	CREATE TABLE IF NOT EXISTS analysis_reports (
		id TEXT PRIMARY KEY,
		asset_fingerprint TEXT NOT NULL,
		asset_path TEXT NOT NULL,
		analyzed_at TEXT NOT NULL,
		confidence REAL NOT NULL,
		likely_synthetic INTEGER NOT NULL,
		threshold REAL NOT NULL,
		anomaly_count INTEGER NOT NULL,
		rule_version TEXT NOT NULL,
		severity_summary TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_fingerprint ON analysis_reports(asset_fingerprint);
	CREATE INDEX IF NOT EXISTS idx_reports_analyzed_at ON analysis_reports(analyzed_at);

	-- Runs that ended without a report
	CREATE TABLE IF NOT EXISTS analysis_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_fingerprint TEXT,
		asset_path TEXT NOT NULL,
		error_kind TEXT NOT NULL,
		message TEXT,
		occurred_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_fingerprint ON analysis_failures(asset_fingerprint);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a completed report. Saving the same report ID twice fails.
func (rdb *ReportDB) SaveReport(ctx context.Context, report *model.AnalysisReport) error {
	if report == nil || report.ID == "" {
		return errors.New("report has no id")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	simple := model.NewSimpleReport(report)
	severity := map[string]int{
		"critical": simple.CriticalCount,
		"high":     simple.HighCount,
		"medium":   simple.MediumCount,
		"low":      simple.LowCount,
		"info":     simple.InfoCount,
	}
	severityJSON, _ := json.Marshal(severity) //nolint:errcheck,errchkjson // map of ints cannot fail

	query := `
	INSERT INTO analysis_reports (
		id, asset_fingerprint, asset_path, analyzed_at, confidence, likely_synthetic,
		threshold, anomaly_count, rule_version, severity_summary, report_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = rdb.db.ExecContext(ctx, query,
		report.ID,
		report.Asset.Fingerprint,
		report.Asset.Path,
		formatTimestamp(report.AnalyzedAt),
		report.ConfidenceScore,
		report.IsLikelySynthetic,
		report.Threshold,
		len(report.Anomalies),
		report.Version,
		string(severityJSON),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by its ID. It returns nil without error when
// no report has that ID.
func (rdb *ReportDB) GetReport(ctx context.Context, id string) (*model.AnalysisReport, error) {
	query := `SELECT report_json FROM analysis_reports WHERE id = ?`
	return rdb.queryReport(ctx, query, id)
}

// LatestReport retrieves the most recent report of an asset, or nil.
func (rdb *ReportDB) LatestReport(ctx context.Context, fingerprint string) (*model.AnalysisReport, error) {
	query := `
	SELECT report_json FROM analysis_reports
	WHERE asset_fingerprint = ?
	ORDER BY analyzed_at DESC, rowid DESC
	LIMIT 1
	`
	return rdb.queryReport(ctx, query, fingerprint)
}

func (rdb *ReportDB) queryReport(ctx context.Context, query string, arg any) (*model.AnalysisReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.AnalysisReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ReportMetadata contains summary information about a stored report.
// It is used for listing history without loading full reports.
type ReportMetadata struct {
	// ID is the report ID.
	ID string

	// Fingerprint identifies the asset.
	Fingerprint string

	// Path is the asset path at the time of analysis.
	Path string

	// AnalyzedAt is when the report was produced.
	AnalyzedAt time.Time

	// Confidence is the combined score.
	Confidence float64

	// LikelySynthetic is the verdict.
	LikelySynthetic bool

	// Threshold is the verdict cut-off used for the run.
	Threshold float64

	// AnomalyCount is the number of anomalies in the report.
	AnomalyCount int

	// RuleVersion identifies the rule set that produced the report.
	RuleVersion string

	// SeveritySummary counts anomalies by severity label.
	SeveritySummary map[string]int
}

const metadataColumns = `
	id, asset_fingerprint, asset_path, analyzed_at, confidence, likely_synthetic,
	threshold, anomaly_count, rule_version, severity_summary
`

// History returns the reports of one asset, newest first.
func (rdb *ReportDB) History(ctx context.Context, fingerprint string) ([]ReportMetadata, error) {
	query := `SELECT ` + metadataColumns + `
	FROM analysis_reports
	WHERE asset_fingerprint = ?
	ORDER BY analyzed_at DESC, rowid DESC
	`
	return rdb.queryMetadata(ctx, query, fingerprint)
}

// Recent returns the newest reports across all assets. A limit of zero or
// less returns every report.
func (rdb *ReportDB) Recent(ctx context.Context, limit int) ([]ReportMetadata, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + metadataColumns + `
	FROM analysis_reports
	ORDER BY analyzed_at DESC, rowid DESC
	LIMIT ?
	`
	return rdb.queryMetadata(ctx, query, limit)
}

func (rdb *ReportDB) queryMetadata(ctx context.Context, query string, args ...any) ([]ReportMetadata, error) {
	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []ReportMetadata
	for rows.Next() {
		var (
			meta         ReportMetadata
			timestamp    string
			severityJSON sql.NullString
		)
		if err := rows.Scan(
			&meta.ID,
			&meta.Fingerprint,
			&meta.Path,
			&timestamp,
			&meta.Confidence,
			&meta.LikelySynthetic,
			&meta.Threshold,
			&meta.AnomalyCount,
			&meta.RuleVersion,
			&severityJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.AnalyzedAt = parseTimestamp(timestamp)
		meta.SeveritySummary = make(map[string]int)
		if severityJSON.Valid && severityJSON.String != "" {
			if err := json.Unmarshal([]byte(severityJSON.String), &meta.SeveritySummary); err != nil {
				meta.SeveritySummary = make(map[string]int)
			}
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// AssetSummary describes one analyzed asset across all of its runs.
type AssetSummary struct {
	Fingerprint    string
	LastPath       string
	Runs           int
	LastAnalyzedAt time.Time
	LastConfidence float64
}

// ListAssets returns every analyzed asset, most recently analyzed first.
func (rdb *ReportDB) ListAssets(ctx context.Context) ([]AssetSummary, error) {
	query := `
	SELECT r.asset_fingerprint, r.asset_path, r.analyzed_at, r.confidence, c.runs
	FROM analysis_reports r
	JOIN (
		SELECT asset_fingerprint, COUNT(*) AS runs, MAX(analyzed_at) AS last_at
		FROM analysis_reports
		GROUP BY asset_fingerprint
	) c ON c.asset_fingerprint = r.asset_fingerprint AND c.last_at = r.analyzed_at
	GROUP BY r.asset_fingerprint
	ORDER BY r.analyzed_at DESC
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []AssetSummary
	for rows.Next() {
		var (
			a         AssetSummary
			timestamp string
		)
		if err := rows.Scan(&a.Fingerprint, &a.LastPath, &timestamp, &a.LastConfidence, &a.Runs); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.LastAnalyzedAt = parseTimestamp(timestamp)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Failure records a run that ended without a report.
type Failure struct {
	ID          int64
	Fingerprint string
	Path        string
	ErrorKind   string
	Message     string
	OccurredAt  time.Time
}

// RecordFailure stores a run that ended with err.
func (rdb *ReportDB) RecordFailure(ctx context.Context, asset model.MediaAsset, err error, at time.Time) error {
	if err == nil {
		return errors.New("no failure to record")
	}

	query := `
	INSERT INTO analysis_failures (asset_fingerprint, asset_path, error_kind, message, occurred_at)
	VALUES (?, ?, ?, ?, ?)
	`
	if _, execErr := rdb.db.ExecContext(ctx, query,
		asset.Fingerprint,
		asset.Path,
		model.ErrorKindOf(err),
		err.Error(),
		formatTimestamp(at),
	); execErr != nil {
		return fmt.Errorf("failed to record failure: %w", execErr)
	}
	return nil
}

// Failures returns the recorded failures for a path, newest first.
// An empty path returns failures for every asset.
func (rdb *ReportDB) Failures(ctx context.Context, path string) ([]Failure, error) {
	query := `
	SELECT id, asset_fingerprint, asset_path, error_kind, message, occurred_at
	FROM analysis_failures
	WHERE 1=1
	`
	args := make([]any, 0, 1)
	if path != "" {
		query += " AND asset_path = ?"
		args = append(args, path)
	}
	query += " ORDER BY occurred_at DESC, id DESC"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			f           Failure
			fingerprint sql.NullString
			message     sql.NullString
			timestamp   string
		)
		if err := rows.Scan(&f.ID, &fingerprint, &f.Path, &f.ErrorKind, &message, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Fingerprint = fingerprint.String
		f.Message = message.String
		f.OccurredAt = parseTimestamp(timestamp)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

// parseTimestamp parses a stored timestamp as UTC. It returns the zero time
// when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
