package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/deepcheck/internal/database"
	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/report"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var discard = slog.New(slog.DiscardHandler)

// fakeAnalyzer returns a fixed outcome per path.
type fakeAnalyzer struct {
	errs  map[string]error
	block bool
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string) (*model.AnalysisReport, error) {
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	}
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	return sampleReport(path), nil
}

func sampleReport(path string) *model.AnalysisReport {
	a := model.NewAnomaly(model.KindEdgeCheckerboard, 0, 0.8, "checkerboard periodicity 0.87 above 0.35")
	score := 0.8
	return &model.AnalysisReport{
		ID:      "rep-" + strings.TrimPrefix(path, "/media/"),
		Version: "deepcheck-rules/1",
		Asset:   model.MediaAsset{Path: path, Fingerprint: strings.Repeat("0f", 32), Kind: model.MediaKindVideo},
		Channels: []model.ChannelResult{
			model.NotApplicable(model.ChannelAudio, model.ReasonNoAudio),
			model.Succeeded(model.ChannelVideo, []model.Anomaly{a}, 1, nil).WithSubScore(score),
			model.NotApplicable(model.ChannelMetadata, model.ReasonNotSelected),
		},
		ConfidenceScore:   score,
		IsLikelySynthetic: true,
		Threshold:         0.5,
		EffectiveWeights:  map[model.Channel]float64{model.ChannelVideo: 1},
		Anomalies:         []model.Anomaly{a},
		AnalyzedAt:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	reports  map[string]*model.AnalysisReport
	failures []string
}

func newMemStore() *memStore {
	return &memStore{reports: make(map[string]*model.AnalysisReport)}
}

func (m *memStore) SaveReport(_ context.Context, r *model.AnalysisReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = r
	return nil
}

func (m *memStore) GetReport(_ context.Context, id string) (*model.AnalysisReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[id], nil
}

func (m *memStore) History(_ context.Context, fingerprint string) ([]database.ReportMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.ReportMetadata
	for _, r := range m.reports {
		if r.Asset.Fingerprint == fingerprint {
			out = append(out, database.ReportMetadata{ID: r.ID, Path: r.Asset.Path, Confidence: r.ConfidenceScore, LikelySynthetic: r.IsLikelySynthetic})
		}
	}
	return out, nil
}

func (m *memStore) RecordFailure(_ context.Context, _ model.MediaAsset, err error, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, model.ErrorKindOf(err))
	return nil
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return out
}

// TestHealth tests the liveness route.
func TestHealth(t *testing.T) {
	t.Parallel()

	h := New(&fakeAnalyzer{}, WithLogger(discard), WithVersion("1.2.3")).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" || body["version"] != "1.2.3" || body["store"] != false {
		t.Errorf("unexpected body: %v", body)
	}
}

// TestSchemaRoute tests that the report schema is served.
func TestSchemaRoute(t *testing.T) {
	t.Parallel()

	rec := do(t, New(&fakeAnalyzer{}, WithLogger(discard)).Handler(), http.MethodGet, "/v1/schema", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), report.SchemaURL) {
		t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

// TestAnalyze tests the analysis route and its error mapping.
func TestAnalyze(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{errs: map[string]error{
		"/media/empty.mp4":    errors.Join(model.ErrNoEvidenceAvailable, model.NewChannelError(model.ChannelVideo, model.ErrDecodeFailure, nil)),
		"/media/notes.txt":    fmt.Errorf("notes.txt: %w", model.ErrUnsupportedFormat),
		"/media/gone.mp4":     fmt.Errorf("stat: %w", os.ErrNotExist),
		"/media/noffmpeg.wav": fmt.Errorf("ffprobe: %w", model.ErrExternalToolUnavailable),
		"/media/stopped.mp4":  fmt.Errorf("%w: %w", model.ErrCancelled, context.Canceled),
	}}

	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus string
	}{
		{name: "report", body: `{"path":"/media/clip.mp4"}`, wantCode: http.StatusOK},
		{name: "indeterminate", body: `{"path":"/media/empty.mp4"}`, wantCode: http.StatusUnprocessableEntity, wantStatus: "indeterminate"},
		{name: "cancelled", body: `{"path":"/media/stopped.mp4"}`, wantCode: StatusClientClosedRequest, wantStatus: "cancelled"},
		{name: "unsupported", body: `{"path":"/media/notes.txt"}`, wantCode: http.StatusBadRequest, wantStatus: "error"},
		{name: "missing file", body: `{"path":"/media/gone.mp4"}`, wantCode: http.StatusNotFound, wantStatus: "error"},
		{name: "tool unavailable", body: `{"path":"/media/noffmpeg.wav"}`, wantCode: http.StatusServiceUnavailable, wantStatus: "error"},
		{name: "bad body", body: `{"file":"x"}`, wantCode: http.StatusBadRequest, wantStatus: "error"},
		{name: "outside root", body: `{"path":"/etc/passwd.mp4"}`, wantCode: http.StatusForbidden, wantStatus: "error"},
		{name: "relative escape", body: `{"path":"../secret.mp4"}`, wantCode: http.StatusForbidden, wantStatus: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			h := New(analyzer, WithLogger(discard), WithStore(store), WithRoot("/media")).Handler()
			rec := do(t, h, http.MethodPost, "/v1/analyses", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == "" {
				if err := report.Validate(rec.Body.Bytes()); err != nil {
					t.Errorf("response is not a valid report: %v", err)
				}
				if len(store.reports) != 1 {
					t.Error("report should be saved")
				}
				return
			}
			if got := decode(t, rec)["status"]; got != tt.wantStatus {
				t.Errorf("status = %v, want %s", got, tt.wantStatus)
			}
		})
	}

	t.Run("failures are recorded", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		h := New(analyzer, WithLogger(discard), WithStore(store)).Handler()
		do(t, h, http.MethodPost, "/v1/analyses", `{"path":"/media/empty.mp4"}`)
		do(t, h, http.MethodPost, "/v1/analyses", `{"path":"/media/notes.txt"}`)
		if len(store.failures) != 1 || store.failures[0] != model.ErrorKindNoEvidence {
			t.Errorf("unexpected recorded failures: %v", store.failures)
		}
	})

	t.Run("request timeout cancels the analysis", func(t *testing.T) {
		t.Parallel()

		h := New(&fakeAnalyzer{block: true}, WithLogger(discard), WithTimeout(10*time.Millisecond)).Handler()
		rec := do(t, h, http.MethodPost, "/v1/analyses", `{"path":"/media/slow.mp4"}`)
		if rec.Code != StatusClientClosedRequest {
			t.Errorf("expected 499, got %d", rec.Code)
		}
	})
}

// TestAnalyzeRootConfinement tests symlink handling below the served root
// and that responses do not reveal absolute paths.
func TestAnalyzeRootConfinement(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	root := filepath.Join(base, "served")
	outside := filepath.Join(base, "private")
	for _, dir := range []string{root, outside} {
		if err := os.Mkdir(dir, 0o750); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{filepath.Join(root, "clip.mp4"), filepath.Join(outside, "secret.mp4")} {
		if err := os.WriteFile(f, []byte("data"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(filepath.Join(outside, "secret.mp4"), filepath.Join(root, "escape.mp4")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "linked")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "clip.mp4"), filepath.Join(root, "alias.mp4")); err != nil {
		t.Fatal(err)
	}

	broken := filepath.Join(root, "broken.mp4")
	analyzer := &fakeAnalyzer{errs: map[string]error{
		broken: fmt.Errorf("open %s: %w", broken, model.ErrDecodeFailure),
	}}
	h := New(analyzer, WithLogger(discard), WithRoot(root)).Handler()

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"file link leaving the root", "escape.mp4", http.StatusForbidden},
		{"directory link leaving the root", "linked/secret.mp4", http.StatusForbidden},
		{"absolute link path", filepath.Join(root, "escape.mp4"), http.StatusForbidden},
		{"link inside the root", "alias.mp4", http.StatusOK},
		{"regular file", "clip.mp4", http.StatusOK},
		{"analysis error", "broken.mp4", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body, err := json.Marshal(map[string]string{"path": tt.path})
			if err != nil {
				t.Fatal(err)
			}
			rec := do(t, h, http.MethodPost, "/v1/analyses", string(body))
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if rec.Code == http.StatusOK {
				return
			}
			msg, _ := decode(t, rec)["error"].(string)
			if msg == "" {
				t.Fatal("error message missing")
			}
			if strings.Contains(msg, base) {
				t.Errorf("response reveals an absolute path: %q", msg)
			}
		})
	}
}

// TestGetAnalysis tests report lookup.
func TestGetAnalysis(t *testing.T) {
	t.Parallel()

	t.Run("found and not found", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		h := New(&fakeAnalyzer{}, WithLogger(discard), WithStore(store)).Handler()
		if rec := do(t, h, http.MethodPost, "/v1/analyses", `{"path":"/media/clip.mp4"}`); rec.Code != http.StatusOK {
			t.Fatalf("analysis failed: %d", rec.Code)
		}

		rec := do(t, h, http.MethodGet, "/v1/analyses/rep-clip.mp4", "")
		if rec.Code != http.StatusOK || decode(t, rec)["id"] != "rep-clip.mp4" {
			t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
		}
		if rec := do(t, h, http.MethodGet, "/v1/analyses/unknown", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}

		rec = do(t, h, http.MethodGet, "/v1/assets/"+strings.Repeat("0f", 32)+"/history", "")
		items, ok := decode(t, rec)["items"].([]any)
		if rec.Code != http.StatusOK || !ok || len(items) != 1 {
			t.Errorf("unexpected history %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("without store", func(t *testing.T) {
		t.Parallel()

		h := New(&fakeAnalyzer{}, WithLogger(discard)).Handler()
		if rec := do(t, h, http.MethodGet, "/v1/analyses/x", ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
		if rec := do(t, h, http.MethodGet, "/v1/assets/x/history", ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

// TestListenAndServe tests graceful shutdown on context cancellation.
func TestListenAndServe(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- New(&fakeAnalyzer{}, WithLogger(discard)).ListenAndServe(ctx, "127.0.0.1:0")
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
