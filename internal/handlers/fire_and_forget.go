package handlers

import (
	"context"
	"log"

	"github.com/on-the-ground/effect_ive_todo/internal/model"
)

// FireAndForgetHandler hands payloads to background workers without waiting
// for them to be handled. Payloads sharing a partition key keep their order;
// with a single worker every payload does.
type FireAndForgetHandler[T model.Partitionable] struct {
	*scope[T]
}

func NewFireAndForgetHandler[T model.Partitionable](
	ctx context.Context,
	config model.ScopeConfig,
	handleFn func(context.Context, T),
	teardown func(),
) FireAndForgetHandler[T] {
	config = model.NewScopeConfig(config.BufferSize, config.NumWorkers)
	var dispatcher WorkerDispatcher[T]
	if config.NumWorkers == 1 {
		dispatcher = NewSingleQueue(ctx, config.BufferSize, handleFn)
	} else {
		dispatcher = NewPartitionedQueue(ctx, config.NumWorkers, config.BufferSize, handleFn)
	}
	return FireAndForgetHandler[T]{scope: newScope(dispatcher, teardown)}
}

// Fire enqueues payload. It gives up when ctx is done, and never panics when
// the handler has already been closed.
func (h FireAndForgetHandler[T]) Fire(ctx context.Context, payload T) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf(
				"panic while sending to closed channel for effect: %+v",
				map[string]interface{}{
					"effectId": h.EffectId,
					"payload":  payload,
				},
			)
		}
	}()

	if ctx.Err() != nil {
		return
	}
	select {
	case <-ctx.Done():
	case h.dispatcher.GetChannelOf(payload) <- payload:
	}
}
