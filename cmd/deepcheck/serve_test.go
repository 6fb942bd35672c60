package main

import (
	"testing"

	"github.com/nao1215/deepcheck/internal/config"
)

// TestNewServeCmd tests the serve command flags.
func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	for _, name := range []string{"listen", "root", "timeout", "threshold", "only", "no-save"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

// TestListenAddress tests the listen address precedence.
func TestListenAddress(t *testing.T) {
	t.Parallel()

	withListen := &config.File{Server: config.ServerFile{Listen: ":9000"}}

	tests := []struct {
		name string
		flag string
		file *config.File
		want string
	}{
		{"flag wins", "0.0.0.0:8081", withListen, "0.0.0.0:8081"},
		{"file value", "", withListen, ":9000"},
		{"no file", "", nil, config.DefaultListenAddress},
		{"file without server section", "", &config.File{}, config.DefaultListenAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := listenAddress(tt.flag, tt.file); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
