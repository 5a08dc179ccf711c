// Package logging provides the process-wide structured logger for the
// support pipeline. It wraps zap behind package-level helpers so call
// sites stay terse and the backend stays swappable.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.SugaredLogger
	loggerMu sync.RWMutex
)

func init() {
	// Default logger so packages can log before InitFromEnv runs.
	l, _ := zap.NewProduction()
	logger = l.Sugar()
}

// InitFromEnv initializes the logger from the environment.
// LOG_LEVEL selects the minimum level (debug, info, warn, error);
// LOG_FORMAT=console switches off JSON output for local development.
func InitFromEnv() (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	loggerMu.Lock()
	logger = l.Sugar()
	loggerMu.Unlock()
	return logger, nil
}

func get() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// Fatalf logs a formatted message and exits the process.
func Fatalf(format string, args ...interface{}) {
	get().Fatalf(format, args...)
}

// LogEvent emits a structured event record with arbitrary fields.
// Used for audit-relevant moments (escalations, sensitive-data hits)
// where downstream tooling matches on the event name.
func LogEvent(event string, fields map[string]interface{}) {
	kv := make([]interface{}, 0, len(fields)*2+2)
	kv = append(kv, "event", event)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	get().Infow("event", kv...)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = get().Sync()
}
