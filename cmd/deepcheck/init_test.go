package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/deepcheck/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "init" {
			t.Errorf("expected use 'init', got %q", cmd.Use)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has stdout flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("stdout") == nil {
			t.Fatal("expected stdout flag")
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, args ...string) error {
		t.Helper()
		_, err := runInit(t, args...)
		return err
	}

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".deepcheck")
		if err := run(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		for _, key := range []string{"analysis:", "scoring:", "threshold:", "channel_weights:"} {
			if !strings.Contains(string(content), key) {
				t.Errorf("expected config to contain %q", key)
			}
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".deepcheck")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		err := run(t, "-o", outputPath)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}
	})

	t.Run("overwrites file with force flag", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".deepcheck")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		if err := run(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !bytes.Equal(content, configTemplate) {
			t.Error("expected file to be replaced by the template")
		}
	})

	t.Run("prints template to stdout", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".deepcheck")
		out, err := runInit(t, "--stdout", "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != string(configTemplate) {
			t.Error("expected the template on stdout")
		}
		if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
			t.Error("stdout mode must not write a file")
		}
	})

	t.Run("reports where the file was written", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "team.yaml")
		out, err := runInit(t, "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Wrote "+outputPath) || !strings.Contains(out, "--config "+outputPath) {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("rejects arguments", func(t *testing.T) {
		t.Parallel()
		if err := run(t, "extra"); err == nil {
			t.Error("expected an error for a positional argument")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "subdir", "nested", ".deepcheck")
		if err := run(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			t.Error("expected config file to be created in nested directory")
		}
	})

	t.Run("file has correct permissions", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("skipping permission test on Windows")
		}

		outputPath := filepath.Join(t.TempDir(), ".deepcheck")
		if err := run(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("failed to stat file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}
	})
}

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestWriteConfigTemplate tests exclusive and forced template writes.
func TestWriteConfigTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".deepcheck")
	if err := writeConfigTemplate(path, false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := writeConfigTemplate(path, false); !errors.Is(err, errConfigExists) {
		t.Errorf("expected errConfigExists, got %v", err)
	}
	if err := writeConfigTemplate(path, true); err != nil {
		t.Errorf("forced write: %v", err)
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := writeConfigTemplate(filepath.Join(blocker, "nested", ".deepcheck"), false); err == nil {
		t.Error("expected an error below a regular file")
	}
}

// TestConfigTemplate tests that the embedded template loads to the defaults.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	cf, err := config.ParseConfigFile(configTemplate)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}

	want := config.DefaultAnalysis()
	got := cf.Analysis
	if got.Scoring.Threshold != want.Scoring.Threshold {
		t.Errorf("threshold: got %v, want %v", got.Scoring.Threshold, want.Scoring.Threshold)
	}
	for ch, w := range want.Scoring.ChannelWeights {
		if got.Scoring.ChannelWeights[ch] != w {
			t.Errorf("weight of %s: got %v, want %v", ch, got.Scoring.ChannelWeights[ch], w)
		}
	}
	if got.Audio.WindowSize != want.Audio.WindowSize {
		t.Errorf("window size: got %d, want %d", got.Audio.WindowSize, want.Audio.WindowSize)
	}
	if got.Video.SaturationLow != want.Video.SaturationLow || got.Video.SaturationHigh != want.Video.SaturationHigh {
		t.Errorf("saturation band: got [%v, %v], want [%v, %v]",
			got.Video.SaturationLow, got.Video.SaturationHigh, want.Video.SaturationLow, want.Video.SaturationHigh)
	}
	if cf.Database.Disabled || cf.Server.Listen != "" {
		t.Error("optional sections should stay commented out")
	}
}
