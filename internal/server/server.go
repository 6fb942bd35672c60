package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/deepcheck/internal/database"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/pipeline"
	"github.com/nao1215/deepcheck/internal/report"
)

// StatusClientClosedRequest is returned when the client went away before the
// analysis finished.
const StatusClientClosedRequest = 499

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Store is the history storage used by the server. *database.ReportDB
// implements it.
type Store interface {
	SaveReport(ctx context.Context, report *model.AnalysisReport) error
	GetReport(ctx context.Context, id string) (*model.AnalysisReport, error)
	History(ctx context.Context, fingerprint string) ([]database.ReportMetadata, error)
	RecordFailure(ctx context.Context, asset model.MediaAsset, err error, at time.Time) error
}

// Server exposes the analysis engine over HTTP.
type Server struct {
	analyzer pipeline.Analyzer
	store    Store
	logger   *slog.Logger
	root     string
	timeout  time.Duration
	version  string
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables persistence and the report lookup routes.
func WithStore(store Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRoot restricts analyzable paths to files below dir.
func WithRoot(dir string) Option {
	return func(s *Server) {
		s.root = filepath.Clean(dir)
	}
}

// WithTimeout bounds each analysis request. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithVersion sets the version reported by the health route.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server backed by analyzer.
func New(analyzer pipeline.Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer: analyzer,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.health)

	v1 := router.Group("/v1")
	v1.GET("/schema", s.schema)
	v1.POST("/analyses", s.analyze)
	v1.GET("/analyses/:id", s.getAnalysis)
	v1.GET("/assets/:fingerprint/history", s.history)

	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"store":   s.store != nil,
	})
}

func (s *Server) schema(c *gin.Context) {
	c.Data(http.StatusOK, "application/schema+json", report.Schema())
}

type analyzeRequest struct {
	Path string `json:"path" binding:"required"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "request body must be {\"path\": \"...\"}"})
		return
	}

	path, err := s.resolve(req.Path)
	if err != nil {
		s.logger.Warn("rejected path", "file", filepath.Base(req.Path), "error", err)
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "error": errOutsideRoot.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rep, err := s.analyzer.Analyze(ctx, path)
	if err != nil {
		s.fail(c, path, err)
		return
	}

	if s.store != nil {
		if err := s.store.SaveReport(c.Request.Context(), rep); err != nil {
			s.logger.Error("failed to save report", "id", rep.ID, "error", err)
		}
	}
	c.JSON(http.StatusOK, rep)
}

// fail maps a run-level error onto an HTTP status and records it.
func (s *Server) fail(c *gin.Context, path string, err error) {
	status, body := http.StatusInternalServerError, "error"
	switch {
	case errors.Is(err, model.ErrNoEvidenceAvailable):
		status, body = http.StatusUnprocessableEntity, "indeterminate"
	case errors.Is(err, model.ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, body = StatusClientClosedRequest, "cancelled"
	case errors.Is(err, model.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrExternalToolUnavailable):
		status = http.StatusServiceUnavailable
	}

	s.logger.Warn("analysis ended without report", "file", filepath.Base(path), "status", body, "error", err)
	if s.store != nil && status != http.StatusNotFound && status != http.StatusBadRequest {
		if recErr := s.store.RecordFailure(context.WithoutCancel(c.Request.Context()),
			model.MediaAsset{Path: path}, err, time.Now()); recErr != nil {
			s.logger.Error("failed to record failure", "error", recErr)
		}
	}

	c.JSON(status, gin.H{
		"status":     body,
		"error_kind": model.ErrorKindOf(err),
		"error":      s.redact(err.Error(), path),
	})
}

// redact replaces the analyzed path and the served root in a client-facing
// message so responses never carry absolute paths.
func (s *Server) redact(msg, path string) string {
	if path != "" && path != "." {
		msg = strings.ReplaceAll(msg, path, filepath.Base(path))
	}
	if s.root != "" && s.root != string(filepath.Separator) {
		msg = strings.ReplaceAll(msg, s.root+string(filepath.Separator), "")
	}
	return msg
}

var errOutsideRoot = errors.New("path is outside the served directory")

// resolve cleans path and checks that it stays below the configured root,
// both lexically and after following symbolic links. A path that does not
// exist yet is judged lexically; the analysis then reports it missing.
func (s *Server) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if s.root == "" {
		return clean, nil
	}
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(s.root, clean)
	}
	if !within(s.root, clean) {
		return "", errOutsideRoot
	}

	target, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return clean, nil
		}
		return "", fmt.Errorf("%w: %w", errOutsideRoot, err)
	}
	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		root = s.root
	}
	if !within(root, target) {
		return "", fmt.Errorf("%w: link target leaves the root", errOutsideRoot)
	}
	return clean, nil
}

// within reports whether path lies in or below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Server) getAnalysis(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "history is disabled"})
		return
	}
	rep, err := s.store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "get failed"})
		return
	}
	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "not found"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

type historyEntry struct {
	ID                string    `json:"id"`
	Path              string    `json:"path"`
	AnalyzedAt        time.Time `json:"analyzed_at"`
	ConfidenceScore   float64   `json:"confidence_score"`
	IsLikelySynthetic bool      `json:"is_likely_synthetic"`
	AnomalyCount      int       `json:"anomaly_count"`
	RuleVersion       string    `json:"rule_version"`
}

func (s *Server) history(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "history is disabled"})
		return
	}
	rows, err := s.store.History(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "history failed"})
		return
	}
	items := make([]historyEntry, 0, len(rows))
	for _, r := range rows {
		items = append(items, historyEntry{
			ID:                r.ID,
			Path:              r.Path,
			AnalyzedAt:        r.AnalyzedAt,
			ConfidenceScore:   r.Confidence,
			IsLikelySynthetic: r.LikelySynthetic,
			AnomalyCount:      r.AnomalyCount,
			RuleVersion:       r.RuleVersion,
		})
	}
	c.JSON(http.StatusOK, gin.H{"fingerprint": c.Param("fingerprint"), "items": items})
}
