package log_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/on-the-ground/effect_ive_todo/effects"
	"github.com/on-the-ground/effect_ive_todo/effects/log"
	"github.com/on-the-ground/effect_ive_todo/internal/model"
)

type logRuntime struct {
	logger log.IO
}

func (rt logRuntime) Logger() log.IO { return rt.logger }

func TestLogModule_RecordsInOrder(t *testing.T) {
	rec := log.NewRecorder()
	rt := logRuntime{logger: rec}

	eff := effects.Then(
		log.Info[logRuntime]("first", map[string]any{"n": 1}),
		effects.Then(
			log.Warn[logRuntime]("second", nil),
			log.Error[logRuntime]("third", nil),
		),
	)

	res := effects.Run(context.Background(), eff, rt)
	if res.IsErr() {
		t.Fatalf("unexpected error: %v", res.Error())
	}

	entries := rec.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	assert.Equal(t, log.LogInfo, entries[0].Level)
	assert.Equal(t, 1, entries[0].Fields["n"])
	assert.Equal(t, []string{"second"}, rec.Messages(log.LogWarn))
	assert.Equal(t, []string{"third"}, rec.Messages(log.LogError))
}

func TestLogModule_NothingBeforeRun(t *testing.T) {
	rec := log.NewRecorder()
	_ = log.Info[logRuntime]("never", nil)
	assert.Empty(t, rec.Entries())
}

func TestRecorder_CopiesFields(t *testing.T) {
	rec := log.NewRecorder()
	fields := map[string]any{"k": "before"}
	rec.Info(context.Background(), "msg", fields)
	fields["k"] = "after"

	assert.Equal(t, "before", rec.Entries()[0].Fields["k"])
}

func TestZap_TagsExecutionIDAndFlushesOnClose(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	z := log.NewZap(context.Background(), model.NewScopeConfig(8, 2), zap.New(core))

	rt := logRuntime{logger: z}
	var seen string
	eff := effects.Then(
		effects.Suspend[logRuntime](func(ctx context.Context) (effects.Unit, error) {
			seen = effects.ExecutionID(ctx)
			return effects.Unit{}, nil
		}),
		log.Info[logRuntime]("hello", map[string]any{"user": "kim"}),
	)
	res := effects.Run(context.Background(), eff, rt)
	if res.IsErr() {
		t.Fatalf("unexpected error: %v", res.Error())
	}

	z.Close()

	all := logs.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 line, got %d", len(all))
	}
	ctxMap := all[0].ContextMap()
	assert.Equal(t, "hello", all[0].Message)
	assert.Equal(t, seen, ctxMap["execution_id"])
	assert.Equal(t, "kim", ctxMap["user"])
}

func TestZap_SameExecutionKeepsOrder(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	z := log.NewZap(context.Background(), model.NewScopeConfig(64, 4), zap.New(core))

	const n = 20
	effs := make([]effects.Effect[logRuntime, effects.Unit], 0, n)
	for i := 0; i < n; i++ {
		effs = append(effs, log.Info[logRuntime](fmt.Sprintf("line-%d", i), nil))
	}
	eff := effects.ForEach(effs, func(e effects.Effect[logRuntime, effects.Unit]) effects.Effect[logRuntime, effects.Unit] {
		return e
	})

	res := effects.Run(context.Background(), eff, logRuntime{logger: z})
	if res.IsErr() {
		t.Fatalf("unexpected error: %v", res.Error())
	}
	z.Close()

	all := logs.All()
	if len(all) != n {
		t.Fatalf("expected %d lines, got %d", n, len(all))
	}
	for i, entry := range all {
		assert.Equal(t, fmt.Sprintf("line-%d", i), entry.Message)
	}
}

func TestZap_CopiesFieldsBeforeHandingThemOff(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	release := make(chan struct{})
	hold := zap.Hooks(func(e zapcore.Entry) error {
		if e.Message == "hold" {
			<-release
		}
		return nil
	})
	z := log.NewZap(context.Background(), model.NewScopeConfig(8, 1), zap.New(core, hold))

	ctx := context.Background()
	z.Info(ctx, "hold", nil)
	fields := map[string]any{"k": "before"}
	z.Info(ctx, "msg", fields)
	// the single worker is still stuck on "hold"
	fields["k"] = "after"
	delete(fields, "k")
	fields["extra"] = true
	close(release)
	z.Close()

	lines := logs.FilterMessage("msg").All()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	assert.Equal(t, map[string]any{"k": "before"}, lines[0].ContextMap())
}

func TestZap_LevelsAreMapped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	z := log.NewZap(context.Background(), model.NewScopeConfig(8, 1), zap.New(core))

	ctx := context.Background()
	z.Info(ctx, "i", nil)
	z.Warn(ctx, "w", nil)
	z.Error(ctx, "e", nil)
	z.Close()

	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.InfoLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestNewZapFromOptions_RejectsUnknownFormat(t *testing.T) {
	_, err := log.NewZapFromOptions(context.Background(), log.Options{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = log.NewZapFromOptions(context.Background(), log.Options{Level: "loud"})
	assert.Error(t, err)

	z, err := log.NewZapFromOptions(context.Background(), log.Options{Level: "warn", Format: "console"})
	if assert.NoError(t, err) {
		z.Close()
	}
}
