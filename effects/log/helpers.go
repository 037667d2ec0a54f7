package log

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/on-the-ground/effect_ive_todo/internal/model"
)

// Options configure NewZapFromOptions.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	BufferSize int
	Workers    int
}

// NewZapFromOptions builds a zap logger writing to stderr and starts the adapter.
func NewZapFromOptions(ctx context.Context, opts Options) (*Zap, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
	}

	var encoder zapcore.Encoder
	switch opts.Format {
	case "", "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console":
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("log format %q: want json or console", opts.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return NewZap(ctx, model.NewScopeConfig(opts.BufferSize, opts.Workers), zap.New(core)), nil
}

// NewTestZap writes development-formatted lines to stdout through one worker.
func NewTestZap(ctx context.Context) *Zap {
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)
	return NewZap(ctx, model.NewScopeConfig(16, 1), zap.New(consoleCore))
}

// Entry is one line captured by Recorder.
type Entry struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

// Recorder keeps every line in memory, synchronously. Meant for tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ IO = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Info(_ context.Context, msg string, fields map[string]any) {
	r.record(LogInfo, msg, fields)
}

func (r *Recorder) Warn(_ context.Context, msg string, fields map[string]any) {
	r.record(LogWarn, msg, fields)
}

func (r *Recorder) Error(_ context.Context, msg string, fields map[string]any) {
	r.record(LogError, msg, fields)
}

func (r *Recorder) record(level LogLevel, msg string, fields map[string]any) {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: msg, Fields: copied})
}

// Entries returns a copy of what was recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns the recorded messages at level, in order.
func (r *Recorder) Messages(level LogLevel) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
