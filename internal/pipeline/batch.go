package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/deepcheck/internal/model"
)

// Analyzer is the single-file operation a BatchProcessor fans out.
// *Engine implements it.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*model.AnalysisReport, error)
}

// BatchResult is the outcome of analyzing one file of a batch.
// Exactly one of Report and Err is set.
type BatchResult struct {
	Path   string
	Report *model.AnalysisReport
	Err    error
}

// BatchProcessor analyzes multiple files concurrently with a bounded
// errgroup. Results keep the input order.
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of files analyzed at once.
// Default is 2 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithFileTimeout bounds the analysis of each file. Zero disables the limit.
func WithFileTimeout(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		b.timeout = d
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(analyzer Analyzer, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		analyzer:    analyzer,
		concurrency: 2,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch analyzes files concurrently. Per-file failures are recorded in
// their BatchResult and do not stop the batch. The returned error is non-nil
// only when ctx ended; results for files that never started carry
// ErrCancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, paths []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(paths))
	err := bp.ProcessBatchWithCallback(ctx, paths, func(r BatchResult, index int) {
		results[index] = r
	})
	return results, err
}

// ProcessBatchWithCallback analyzes files and calls callback for each one as
// soon as it completes. callback runs on the worker goroutine and must be safe
// for concurrent use unless it only touches its own index.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	paths []string,
	callback func(result BatchResult, index int),
) error {
	bp.logger.Info("starting batch analysis",
		"total_files", len(paths),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				callback(BatchResult{Path: path, Err: model.ErrCancelled}, i)
				return nil
			}

			fileCtx := gctx
			if bp.timeout > 0 {
				var cancel context.CancelFunc
				fileCtx, cancel = context.WithTimeout(gctx, bp.timeout)
				defer cancel()
			}

			bp.logger.Debug("analyzing file", "file", path, "index", i+1, "total", len(paths))
			report, err := bp.analyzer.Analyze(fileCtx, path)
			if err != nil {
				bp.logger.Warn("analysis failed",
					"file", path,
					"error_kind", model.ErrorKindOf(err),
					"error", err,
				)
			}
			callback(BatchResult{Path: path, Report: report, Err: err}, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers record their errors in results

	bp.logger.Info("batch analysis complete",
		"total_files", len(paths),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
