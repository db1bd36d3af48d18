package observability

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCronLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.DebugLevel)
	logger := NewCronLogger(zap.New(core))

	logger.Info("wake", "now", "2026-03-14")
	logger.Error(errors.New("panic: boom"), "panic", "stack", "...")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("entries=%d, want=2", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Fatalf("info level = %v, want debug", entries[0].Level)
	}
	if entries[0].LoggerName != "cron" {
		t.Fatalf("logger name = %q, want cron", entries[0].LoggerName)
	}
	if got := entries[0].ContextMap()["now"]; got != "2026-03-14" {
		t.Fatalf("now=%v, want 2026-03-14", got)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("error level = %v, want error", entries[1].Level)
	}
	if got := entries[1].ContextMap()["error"]; got != "panic: boom" {
		t.Fatalf("error=%v, want panic: boom", got)
	}
}

func TestNewCronLoggerNil(t *testing.T) {
	t.Parallel()

	NewCronLogger(nil).Info("noop")
}
