// Package log is the logging capability: the contract, a zap-backed production
// adapter, the effect module and a recording test adapter.
package log

import (
	"context"
	"maps"

	"go.uber.org/zap"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/internal/handlers"
	"github.com/on-the-ground/effect_ive_todo/internal/model"
)

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"
)

// IO is the logging contract.
type IO interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, fields map[string]any)
}

// Has is the requirement fragment for runtimes that supply a logger.
type Has interface {
	Logger() IO
}

func of[R Has](rt R) IO { return rt.Logger() }

// Info logs through the runtime's logger.
func Info[R Has](msg string, fields map[string]any) effects.Effect[R, effects.Unit] {
	return emit[R](LogInfo, msg, fields)
}

// Warn logs through the runtime's logger.
func Warn[R Has](msg string, fields map[string]any) effects.Effect[R, effects.Unit] {
	return emit[R](LogWarn, msg, fields)
}

// Error logs through the runtime's logger.
func Error[R Has](msg string, fields map[string]any) effects.Effect[R, effects.Unit] {
	return emit[R](LogError, msg, fields)
}

func emit[R Has](level LogLevel, msg string, fields map[string]any) effects.Effect[R, effects.Unit] {
	return effects.Use(of[R], func(ctx context.Context, logger IO) (effects.Unit, error) {
		switch level {
		case LogWarn:
			logger.Warn(ctx, msg, fields)
		case LogError:
			logger.Error(ctx, msg, fields)
		default:
			logger.Info(ctx, msg, fields)
		}
		return effects.Unit{}, nil
	})
}

// LogPayload is one log line travelling through the zap adapter's dispatcher.
type LogPayload struct {
	Level       LogLevel
	Message     string
	Fields      map[string]any
	ExecutionID string
}

// PartitionKey keeps the lines of one execution on one worker, in order.
func (lp LogPayload) PartitionKey() string {
	if lp.ExecutionID == "" {
		return model.Unpartitioned
	}
	return lp.ExecutionID
}

// Zap is the production adapter. Calls return immediately; lines are written by
// background workers and flushed by Close.
type Zap struct {
	handler handlers.FireAndForgetHandler[LogPayload]
}

var _ IO = (*Zap)(nil)

// NewZap starts the adapter's workers. Close must be called to flush them.
func NewZap(ctx context.Context, config model.ScopeConfig, logger *zap.Logger) *Zap {
	return &Zap{
		handler: handlers.NewFireAndForgetHandler(
			context.WithoutCancel(ctx),
			config,
			func(_ context.Context, payload LogPayload) {
				write(logger, payload)
			},
			func() {
				// Sync fails on terminals (ENOTTY/EINVAL); nothing to do about it.
				_ = logger.Sync()
			},
		),
	}
}

func write(logger *zap.Logger, payload LogPayload) {
	fields := make([]zap.Field, 0, len(payload.Fields)+1)
	if payload.ExecutionID != "" {
		fields = append(fields, zap.String("execution_id", payload.ExecutionID))
	}
	for k, v := range payload.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch payload.Level {
	case LogWarn:
		logger.Warn(payload.Message, fields...)
	case LogError:
		logger.Error(payload.Message, fields...)
	default:
		logger.Info(payload.Message, fields...)
	}
}

func (z *Zap) Info(ctx context.Context, msg string, fields map[string]any) {
	z.fire(ctx, LogInfo, msg, fields)
}

func (z *Zap) Warn(ctx context.Context, msg string, fields map[string]any) {
	z.fire(ctx, LogWarn, msg, fields)
}

func (z *Zap) Error(ctx context.Context, msg string, fields map[string]any) {
	z.fire(ctx, LogError, msg, fields)
}

// fire copies fields: the worker reads them after the caller has moved on.
func (z *Zap) fire(ctx context.Context, level LogLevel, msg string, fields map[string]any) {
	z.handler.Fire(context.WithoutCancel(ctx), LogPayload{
		Level:       level,
		Message:     msg,
		Fields:      maps.Clone(fields),
		ExecutionID: effects.ExecutionID(ctx),
	})
}

// Close flushes pending lines and syncs the underlying logger.
func (z *Zap) Close() {
	z.handler.Close()
}
