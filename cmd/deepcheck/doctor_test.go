package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// TestDoctorCmd tests the report of missing external tools.
func TestDoctorCmd(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
analysis:
  tools:
    ffmpeg: deepcheck-missing-ffmpeg
    ffprobe: deepcheck-missing-ffprobe
`)
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"doctor", "--config", path})

	err := root.Execute()
	if !errors.Is(err, errMissingTools) {
		t.Fatalf("expected errMissingTools, got %v", err)
	}
	for _, want := range []string{"deepcheck-missing-ffmpeg", "deepcheck-missing-ffprobe", "missing"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output should contain %q:\n%s", want, out.String())
		}
	}
}
