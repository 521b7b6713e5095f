// Package logging installs the process-wide zap logger, mirroring the
// pattern used across golang/cmd/*/main.go in the teacher repo.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init configures the global zap logger at the given level string
// ("DEBUG", "INFO", "WARN", "ERROR") and installs it via zap.ReplaceGlobals.
// The returned func flushes buffered log entries and should be deferred.
func Init(levelName string) func() {
	level := parseLevel(levelName)

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a development logger rather than crash on bad config.
		logger, _ = zap.NewDevelopment()
	}
	zap.ReplaceGlobals(logger)

	return func() {
		_ = logger.Sync()
	}
}

func parseLevel(name string) zapcore.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}
