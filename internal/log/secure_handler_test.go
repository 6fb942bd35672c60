package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestSecureHandler_SanitizesSensitiveKeys tests that sensitive keys are sanitized.
func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{
			name:     "gps key is sanitized",
			key:      "gps",
			value:    "35.6895,139.6917",
			wantMask: true,
		},
		{
			name:     "flattened exif latitude is sanitized",
			key:      "exif.gpslatitude",
			value:    "35/1 41/1 22/1",
			wantMask: true,
		},
		{
			name:     "quicktime location is sanitized",
			key:      "com.apple.quicktime.location.iso6709",
			value:    "somewhere",
			wantMask: true,
		},
		{
			name:     "serial number is sanitized",
			key:      "exif.bodyserialnumber",
			value:    "SN0042-A",
			wantMask: true,
		},
		{
			name:     "artist tag is sanitized",
			key:      "exif.artist",
			value:    "Jane Roe",
			wantMask: true,
		},
		{
			name:     "author key is sanitized",
			key:      "Author",
			value:    "John Doe",
			wantMask: true,
		},
		{
			name:     "authorization key is sanitized",
			key:      "authorization",
			value:    "Token abc",
			wantMask: true,
		},
		{
			name:     "path key is NOT sanitized",
			key:      "path",
			value:    "/media/clip.mp4",
			wantMask: false,
		},
		{
			name:     "encoder key is NOT sanitized",
			key:      "encoder",
			value:    "Lavf60.3.100",
			wantMask: false,
		},
		{
			name:     "make key is NOT sanitized",
			key:      "exif.make",
			value:    "Canon",
			wantMask: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)

			logger.Info("test message", tt.key, tt.value)

			output := buf.String()

			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked, but found in output: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask value %q in output, but not found: %s", MaskValue, output)
				}
			} else if !strings.Contains(output, tt.value) {
				t.Errorf("expected value %q to be present in output, but not found: %s", tt.value, output)
			}
		})
	}
}

// TestSecureHandler_LogLevels tests that log levels are respected.
func TestSecureHandler_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verbose    bool
		logLevel   slog.Level
		shouldShow bool
	}{
		{"debug shown in verbose mode", true, slog.LevelDebug, true},
		{"debug hidden in default mode", false, slog.LevelDebug, false},
		{"info hidden in default mode", false, slog.LevelInfo, false},
		{"warn shown in default mode", false, slog.LevelWarn, true},
		{"error shown in default mode", false, slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, tt.verbose)

			testMsg := "test_unique_message_12345"
			logger.Log(t.Context(), tt.logLevel, testMsg)

			hasMessage := strings.Contains(buf.String(), testMsg)
			if tt.shouldShow != hasMessage {
				t.Errorf("shown = %v, expected %v: %s", hasMessage, tt.shouldShow, buf.String())
			}
		})
	}
}

// TestSecureHandler_WithAttrs tests that WithAttrs sanitizes attributes.
func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)

	logger.With("gpscoordinates", "+35.6895+139.6917/").Info("test message")

	output := buf.String()
	if strings.Contains(output, "139.6917") {
		t.Errorf("expected location to be masked in WithAttrs, but found in output: %s", output)
	}
}

// TestSecureHandler_WithGroup tests that grouped attributes are sanitized.
func TestSecureHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)

	logger.WithGroup("metadata").Info("tags",
		slog.Group("exif", "model", "EOS R5", "owner", "someone"))

	output := buf.String()
	if !strings.Contains(output, "EOS R5") {
		t.Errorf("expected model to be visible: %s", output)
	}
	if strings.Contains(output, "someone") {
		t.Errorf("expected owner to be masked: %s", output)
	}
}

// TestNewSecureJSONLogger tests JSON logger creation.
func TestNewSecureJSONLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, false)

	logger.Info("analysis finished", "serial", "ABC123")

	output := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("expected JSON format, but got: %s", output)
	}
	if !strings.Contains(output, "analysis finished") {
		t.Errorf("expected info record in non-verbose JSON mode: %s", output)
	}
	if strings.Contains(output, "ABC123") {
		t.Errorf("expected serial to be masked: %s", output)
	}
}

// TestIsSensitiveValue tests the isSensitiveValue helper.
func TestIsSensitiveValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		expected bool
	}{
		{"ISO 6709 with altitude", "+35.6895+139.6917+040.000/", true},
		{"ISO 6709 short", "+48.8577+002.295/", true},
		{"decimal pair", "35.68950, 139.69171", true},
		{"bearer token", "Bearer abc123xyz", true},
		{"normal string", "hello world", false},
		{"encoder", "Lavf60.3.100", false},
		{"duration", "12.345", false},
		{"date", "2024-01-02T03:04:05Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isSensitiveValue(tt.value); got != tt.expected {
				t.Errorf("isSensitiveValue(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

// TestNewSecureHandler_NilHandler tests that nil handler is handled gracefully.
func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	handler := NewSecureHandler(nil)
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
	slog.New(handler).Info("test message")
}
