package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerTo_JSONWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRangeID(WithSessionID(NewLoggerTo(&buf, "info"), "ses-1"), "rng-1")
	logger.Debug("hidden")
	logger.Info("range created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "range created" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["session_id"] != "ses-1" || entry["range_id"] != "rng-1" {
		t.Errorf("missing attrs: %v", entry)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcdefghijklmnop"); got != "abcd...mnop" {
		t.Errorf("SanitizeToken = %q", got)
	}
}

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got := SanitizePath(filepath.Join(home, "media", "a.m3u8"))
	if got != "~"+string(filepath.Separator)+filepath.Join("media", "a.m3u8") {
		t.Errorf("SanitizePath = %q", got)
	}
}
