package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/deepcheck/internal/model"
	"github.com/nao1215/deepcheck/internal/report"
)

// writeReport stores rep as JSON in dir and returns the file path.
func writeReport(t *testing.T, dir, name string, rep *model.AnalysisReport) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := report.NewJSONWriter(&buf, report.WithPrettyPrint()).Write(rep); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRunValidateReportCmd tests report validation from the command line.
func TestRunValidateReportCmd(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, args ...string) (string, error) {
		t.Helper()
		var out bytes.Buffer
		cmd := NewValidateReportCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	t.Run("valid reports", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		a := writeReport(t, dir, "a_report.json", sampleReport("a", "/a.mp4", testFingerprint, 0.8, model.KindFrameSplice))
		b := writeReport(t, dir, "b_report.json", sampleReport("b", "/b.wav", "", 0.1))

		out, err := run(t, a, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(out, "OK ") != 2 {
			t.Errorf("expected two OK lines:\n%s", out)
		}
	})

	t.Run("invalid report", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		good := writeReport(t, dir, "good.json", sampleReport("a", "/a.mp4", testFingerprint, 0.8))
		broken := sampleReport("b", "/b.mp4", testFingerprint, 0.4)
		broken.ConfidenceScore = 1.5
		bad := writeReport(t, dir, "bad.json", broken)
		missing := filepath.Join(dir, "missing.json")

		out, err := run(t, good, bad, missing)
		if !errors.Is(err, errInvalidReports) {
			t.Fatalf("expected errInvalidReports, got %v", err)
		}
		if !strings.Contains(err.Error(), "2 of 3") {
			t.Errorf("unexpected error message %q", err.Error())
		}
		if !strings.Contains(out, "OK       "+good) || !strings.Contains(out, "INVALID  "+bad) || !strings.Contains(out, "INVALID  "+missing) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("no arguments", func(t *testing.T) {
		t.Parallel()
		if _, err := run(t); err == nil {
			t.Error("expected error without reports")
		}
	})

	t.Run("prints the schema", func(t *testing.T) {
		t.Parallel()

		out, err := run(t, "--schema")
		if err != nil {
			t.Fatal(err)
		}
		var schema map[string]any
		if err := json.Unmarshal([]byte(out), &schema); err != nil {
			t.Fatalf("schema is not JSON: %v", err)
		}
		if schema["title"] != "deepcheck analysis report" {
			t.Errorf("unexpected schema title %v", schema["title"])
		}
	})
}
