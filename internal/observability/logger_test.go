package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		level        string
		format       string
		wantErr      bool
		debugEnabled bool
	}{
		{name: "debug json", level: "debug", format: "json", debugEnabled: true},
		{name: "info console", level: "info", format: " Console "},
		{name: "defaults", level: "", format: ""},
		{name: "upper-case level", level: "WARN", format: "json"},
		{name: "unknown level", level: "chatty", format: "json", wantErr: true},
		{name: "unknown format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				if err == nil || logger != nil {
					t.Fatalf("NewLogger(%q, %q) = %v, %v, want nil logger and error", tt.level, tt.format, logger, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger(%q, %q) error = %v", tt.level, tt.format, err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debugEnabled {
				t.Fatalf("debug enabled = %v, want %v", got, tt.debugEnabled)
			}
		})
	}
}
