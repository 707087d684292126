package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalSugar *zap.SugaredLogger
	globalBase  *zap.Logger
	initMu      sync.Mutex
)

type ctxKey struct{}

// Init initializes the global zap logger. env "prod"/"production" selects the JSON
// production config, anything else the development config.
// Stdlib log output is redirected to zap.
func Init(env string) (*zap.SugaredLogger, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if globalSugar != nil && globalBase != nil {
		return globalSugar, nil
	}

	var cfg zap.Config
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(base)
	_ = zap.RedirectStdLog(base)

	globalBase = base
	globalSugar = base.Sugar()
	return globalSugar, nil
}

// L returns the global sugared logger, initializing it on first use.
func L() *zap.SugaredLogger {
	Base()
	initMu.Lock()
	defer initMu.Unlock()
	return globalSugar
}

// Base returns the base *zap.Logger (non-sugared).
func Base() *zap.Logger {
	initMu.Lock()
	base := globalBase
	initMu.Unlock()
	if base != nil {
		return base
	}

	if _, err := Init(os.Getenv("LOG_ENV")); err != nil {
		initMu.Lock()
		if globalBase == nil {
			fallback, _ := zap.NewDevelopment()
			globalBase = fallback
			globalSugar = fallback.Sugar()
		}
		initMu.Unlock()
	}

	initMu.Lock()
	defer initMu.Unlock()
	return globalBase
}

// WithFields returns a copy of ctx carrying fields that every context-aware log call adds.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing := fieldsFrom(ctx)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

func fieldsFrom(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	if fields, ok := ctx.Value(ctxKey{}).([]zap.Field); ok {
		return fields
	}
	return nil
}

// FromContext returns the base logger enriched with the request fields stored in ctx.
func FromContext(ctx context.Context) *zap.Logger {
	fields := fieldsFrom(ctx)
	if len(fields) == 0 {
		return Base()
	}
	return Base().With(fields...)
}

// Debug logs with context and fields.
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Debug(msg, fields...)
}

// Info logs with context and fields.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Info(msg, fields...)
}

// Warn logs with context and fields.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Warn(msg, fields...)
}

// Error logs with context and fields.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	FromContext(ctx).Error(msg, fields...)
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalSugar != nil {
		_ = globalSugar.Sync()
	}
	if globalBase != nil {
		_ = globalBase.Sync()
	}
}

// GORMWriter adapts zap to gorm.io/gorm/logger.Writer.
type GORMWriter struct {
	// Level picks the zap level for every GORM line; slow-query and error lines
	// arrive through the same Printf so a single level is used.
	Level zapcore.Level
}

// Printf implements gorm.io/gorm/logger.Writer interface
func (w GORMWriter) Printf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	msg = strings.TrimRight(msg, "\r\n")
	if ce := Base().Check(w.Level, msg); ce != nil {
		ce.Write(zap.String("component", "gorm"))
	}
}

// NewGORMWriter creates a GORM writer that logs at warn level.
func NewGORMWriter() GORMWriter {
	return GORMWriter{Level: zapcore.WarnLevel}
}
