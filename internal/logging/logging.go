package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a service-scoped structured logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New creates a new logger for a service. Output is JSON unless
// HEARTH_ENV=dev, in which case a human-readable console encoder is used.
func New(serviceName string) *Logger {
	var cfg zap.Config
	if os.Getenv("HEARTH_ENV") == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Config above is static; Build only fails on bad output paths.
		base = zap.NewNop()
	}
	return &Logger{
		sugar: base.Sugar().With("service", serviceName),
	}
}

// Info logs an informational message with printf-style args.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

// Fatal logs a fatal error and exits.
func (l *Logger) Fatal(err error) {
	l.sugar.Fatalf("%v", err)
}

// Sync flushes buffered log entries. Call before process exit.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}
