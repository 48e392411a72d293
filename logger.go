package docpipe

import (
	"context"
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured logger
type Logger interface {
	Debug(ctx context.Context, msg string, tags map[string]any)
	Info(ctx context.Context, msg string, tags map[string]any)
	Warn(ctx context.Context, msg string, tags map[string]any)
	Error(ctx context.Context, msg string, err error, tags map[string]any)
	// With returns a logger that adds the tags to every entry
	With(tags map[string]any) Logger
	Sync() error
}

type zapLogger struct {
	logger *zap.Logger
}

// NewLogger returns a structured json logger with the given level (error, warn, info, debug) and
// default fields
func NewLogger(level string, defaultFields map[string]any) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(getLevel(level))
	opts := []zap.Option{
		zap.WithCaller(true),
		zap.AddCallerSkip(1),
		zap.Fields(fields(defaultFields)...),
	}
	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return &zapLogger{logger: logger}, nil
}

// NopLogger returns a logger that discards every entry
func NopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

func (z *zapLogger) Debug(ctx context.Context, msg string, tags map[string]any) {
	z.logger.Debug(msg, fields(tags)...)
}

func (z *zapLogger) Info(ctx context.Context, msg string, tags map[string]any) {
	z.logger.Info(msg, fields(tags)...)
}

func (z *zapLogger) Warn(ctx context.Context, msg string, tags map[string]any) {
	z.logger.Warn(msg, fields(tags)...)
}

func (z *zapLogger) Error(ctx context.Context, msg string, err error, tags map[string]any) {
	z.logger.Error(msg, append([]zap.Field{zap.Error(err)}, fields(tags)...)...)
}

func (z *zapLogger) With(tags map[string]any) Logger {
	return &zapLogger{logger: z.logger.With(fields(tags)...)}
}

func (z *zapLogger) Sync() error {
	return z.logger.Sync()
}

// fields converts tags into zap fields in key order
func fields(tags map[string]any) []zap.Field {
	keys := lo.Keys(tags)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) zap.Field { return zap.Any(k, tags[k]) })
}

func getLevel(level string) zapcore.Level {
	levelMap := map[string]zapcore.Level{
		"error":   zap.ErrorLevel,
		"warn":    zap.WarnLevel,
		"warning": zap.WarnLevel,
		"info":    zap.InfoLevel,
		"debug":   zap.DebugLevel,
	}
	l, ok := levelMap[strings.ToLower(level)]
	if !ok {
		return zap.InfoLevel
	}
	return l
}
