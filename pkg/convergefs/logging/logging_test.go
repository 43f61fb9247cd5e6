package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, zerolog.InfoLevel)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug output leaked below the configured level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("info output missing")
	}
	if !strings.Contains(out, "convergefs") {
		t.Error("lib field missing from output")
	}
}

func TestNewTestLogger(t *testing.T) {
	tests := []struct {
		verbose int
		want    zerolog.Level
	}{
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{3, zerolog.TraceLevel},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := NewTestLogger(&buf, tt.verbose)
		if got := logger.GetLevel(); got != tt.want {
			t.Errorf("verbosity %d: got level %v, want %v", tt.verbose, got, tt.want)
		}
	}
}

func TestLevelFromString(t *testing.T) {
	level, err := LevelFromString("DEBUG")
	if err != nil {
		t.Fatalf("LevelFromString failed: %v", err)
	}
	if level != zerolog.DebugLevel {
		t.Errorf("got %v, want debug", level)
	}

	if _, err := LevelFromString("shouting"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDefaultLogger(t *testing.T) {
	if got := DefaultLogger().GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("got level %v, want warn", got)
	}
}
