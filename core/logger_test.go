package core

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestDefaultLogger_WritesFields verifies fields reach the slog handler
// Given: A DefaultLogger over a text handler at info level
// When: Debug and Info are logged with fields
// Then: Only the info record appears, carrying its fields
func TestDefaultLogger_WritesFields(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Act
	logger.Debug("hidden", F("k", 1))
	logger.Info("worker started", F("pool", "p1"), F("worker", 2))

	// Assert
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record should be filtered")
	}
	for _, want := range []string{"worker started", "pool=p1", "worker=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

// TestNoOpLogger verifies the discarding logger satisfies Logger
func TestNoOpLogger(t *testing.T) {
	var l Logger = NewNoOpLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x", F("err", "y"))

	if NewSlogLogger(nil) == nil {
		t.Error("nil slog logger should fall back to the default")
	}
}
