package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger for structured logging
type Logger struct {
	z *zap.Logger
}

// New creates an info-level logger. Development mode writes colored console
// output; otherwise JSON with ISO8601 timestamps.
func New(development bool) (*Logger, error) {
	return NewWithLevel(development, "info")
}

// NewWithLevel builds a logger at the given level name ("debug", "info", ...).
func NewWithLevel(development bool, level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// FromZap wraps an existing zap logger
func FromZap(z *zap.Logger) *Logger {
	if z == nil {
		return Nop()
	}
	return &Logger{z: z}
}

// With adds fields to the logger
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// ForItem scopes the logger to one queue item.
func (l *Logger) ForItem(kind, id string) *Logger {
	return l.With(zap.String("kind", kind), zap.String("item", id))
}

// Named tags entries with a component name, e.g. "queue" or "audio".
func (l *Logger) Named(name string) *Logger {
	return &Logger{z: l.z.Named(name)}
}

func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Sync() error                           { return l.z.Sync() }
