// Package observ builds the process logger.
package observ

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger tuned for the environment: JSON output
// in production, console encoding everywhere else. An unparseable or
// empty level falls back rather than failing the boot — to debug in
// development, where the realtime event flow is what you are usually
// staring at, and to info in production.
func NewLogger(env, level string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
		if env != "production" {
			zapLevel = zapcore.DebugLevel
		}
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	// Every entry names the emitting service; log aggregation across the
	// platform keys on this.
	return logger.Named("campuslive"), nil
}
