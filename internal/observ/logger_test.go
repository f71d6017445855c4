package observ_test

import (
	"testing"

	"github.com/campuslive/campuslive/internal/observ"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger, err := observ.NewLogger("production", "warn")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn disabled at warn level")
	}
}

func TestNewLoggerLevelFallbackDependsOnEnv(t *testing.T) {
	cases := []struct {
		env       string
		wantDebug bool
	}{
		{"development", true},
		{"production", false},
	}

	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			logger, err := observ.NewLogger(tc.env, "not-a-level")
			if err != nil {
				t.Fatalf("NewLogger failed: %v", err)
			}
			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.wantDebug {
				t.Errorf("debug enabled = %v in %s with an unparseable level, want %v",
					got, tc.env, tc.wantDebug)
			}
			if !logger.Core().Enabled(zapcore.InfoLevel) {
				t.Error("info disabled after level fallback")
			}
		})
	}
}
