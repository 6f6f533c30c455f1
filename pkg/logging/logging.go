// Package logging provides a chained structured logger backed by zap.
// WithContext pulls the request id, tenant id, and trace ids out of the
// context so every line emitted during a request carries them.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appcontext "github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/context"
	"github.com/QuinntyneBrown/AutomatedMarketIntelligenceTool-sub001/pkg/tracing"
)

type Logger interface {
	WithContext(ctx context.Context) Logger
	WithError(err error) Logger
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type zapLogger struct {
	base *zap.Logger
}

// New builds a Logger at the given level ("debug", "info", "warn", "error").
// Pretty mode switches from JSON to console encoding for local development.
func New(level string, pretty bool) Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewNop()
	}

	return &zapLogger{base: base}
}

// Nop returns a Logger that discards everything. Intended for tests.
func Nop() Logger {
	return &zapLogger{base: zap.NewNop()}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}

	fields := make([]zap.Field, 0, 4)
	if requestID := appcontext.GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if tenantID := appcontext.GetTenantID(ctx); tenantID != "" {
		fields = append(fields, zap.String("tenant_id", tenantID))
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if spanID := tracing.GetSpanID(ctx); spanID != "" {
		fields = append(fields, zap.String("span_id", spanID))
	}

	if len(fields) == 0 {
		return l
	}
	return &zapLogger{base: l.base.With(fields...)}
}

func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &zapLogger{base: l.base.With(zap.Error(err))}
}

func (l *zapLogger) WithField(key string, value any) Logger {
	return &zapLogger{base: l.base.With(zap.Any(key, value))}
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	zapFields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	return &zapLogger{base: l.base.With(zapFields...)}
}

func (l *zapLogger) Debug(msg string) { l.base.Debug(msg) }
func (l *zapLogger) Info(msg string)  { l.base.Info(msg) }
func (l *zapLogger) Warn(msg string)  { l.base.Warn(msg) }
func (l *zapLogger) Error(msg string) { l.base.Error(msg) }

func (l *zapLogger) Debugf(format string, args ...any) { l.base.Debug(fmt.Sprintf(format, args...)) }
func (l *zapLogger) Infof(format string, args ...any)  { l.base.Info(fmt.Sprintf(format, args...)) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.base.Warn(fmt.Sprintf(format, args...)) }
func (l *zapLogger) Errorf(format string, args ...any) { l.base.Error(fmt.Sprintf(format, args...)) }
