// pkg/logger/logger.go
//
// Тонкая обёртка над zap: единая точка конфигурации, sub-логгеры
// через Named, обогащение полями trace_id/request_id из контекста.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type contextKey string

const (
	traceIDKey   contextKey = "trace_id"
	requestIDKey contextKey = "request_id"
)

// Config задаёт уровень и формат вывода.
// Level: "debug" | "info" | "warn" | "error" (пустой → "info").
// DevMode включает консольный вывод вместо JSON.
type Config struct {
	Level   string `mapstructure:"level"`
	DevMode bool   `mapstructure:"dev_mode"`
}

func (c *Config) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Logger оборачивает *zap.Logger; нулевое значение непригодно,
// создавайте через New.
type Logger struct {
	z *zap.Logger
}

// New собирает логгер по конфигу. Вызовите Sync() перед выходом.
func New(cfg Config) (*Logger, error) {
	cfg.applyDefaults()

	zapCfg := buildZapConfig(cfg.DevMode)
	if err := setZapLevel(&zapCfg, cfg.Level); err != nil {
		return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
	}

	zl, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logger: build zap: %w", err)
	}
	return &Logger{z: zl}, nil
}

// Sync сбрасывает буферы; ошибка сброса не важна вызывающему.
func (l *Logger) Sync() { _ = l.z.Sync() }

// Named возвращает sub-логгер с дописанным именем.
func (l *Logger) Named(name string) *Logger { return &Logger{z: l.z.Named(name)} }

// WithContext дописывает trace_id/request_id, если они есть в контексте.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var fields []zap.Field
	for _, key := range []contextKey{traceIDKey, requestIDKey} {
		if v, ok := ctx.Value(key).(string); ok {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{z: l.z.With(fields...)}
}

// Sugar — printf-стиль для main и редких мест.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.z.Sugar() }

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// ContextWithTraceID кладёт trace-ID в контекст для WithContext.
func ContextWithTraceID(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, traceIDKey, tid)
}

// ContextWithRequestID кладёт request-ID в контекст для WithContext.
func ContextWithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}
