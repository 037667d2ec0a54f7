package handlers

import (
	"context"
	"sync"

	"github.com/on-the-ground/effect_ive_todo/internal/model"
)

// WorkerDispatcher routes messages to the channel of the worker that owns them.
//
// Workers stop when the scope context is cancelled, which also closes every
// channel: a later send panics, and callers guard their sends accordingly.
// Close stops accepting messages, lets workers drain what is buffered and waits
// for them to return.
type WorkerDispatcher[T any] interface {
	GetChannelOf(msg T) chan T
	Close()
}

type workerPool[T any] struct {
	chs  []chan T
	once sync.Once
	wg   sync.WaitGroup
}

func (p *workerPool[T]) closeChannels() {
	p.once.Do(func() {
		for _, ch := range p.chs {
			close(ch)
		}
	})
}

func (p *workerPool[T]) Close() {
	p.closeChannels()
	p.wg.Wait()
}

func (p *workerPool[T]) start(ctx context.Context, handleFn func(context.Context, T)) {
	ready := sync.WaitGroup{}
	for _, ch := range p.chs {
		ready.Add(1)
		p.wg.Add(1)
		go func(ch chan T) {
			defer p.wg.Done()
			ready.Done()
			for {
				select {
				case msg, ok := <-ch:
					if !ok {
						return
					}
					handleFn(ctx, msg)
				case <-ctx.Done():
					p.closeChannels()
					return
				}
			}
		}(ch)
	}
	ready.Wait()
}

// --- single queue ---

type singleQueue[T any] struct {
	*workerPool[T]
}

func (q singleQueue[T]) GetChannelOf(_ T) chan T {
	return q.chs[0]
}

// NewSingleQueue starts one worker: every message is handled in send order.
func NewSingleQueue[T any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
) WorkerDispatcher[T] {
	pool := &workerPool[T]{chs: []chan T{make(chan T, bufferSize)}}
	pool.start(ctx, handleFn)
	return singleQueue[T]{workerPool: pool}
}

// --- partitioned queue ---

type partitionedQueue[T model.Partitionable] struct {
	*workerPool[T]
}

func (pq partitionedQueue[T]) GetChannelOf(msg T) chan T {
	return pq.chs[partitionOf(msg.PartitionKey(), len(pq.chs))]
}

// NewPartitionedQueue starts numWorkers workers and routes each message by the
// hash of its partition key.
func NewPartitionedQueue[T model.Partitionable](
	ctx context.Context,
	numWorkers, bufferSize int,
	handleFn func(context.Context, T),
) WorkerDispatcher[T] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	chs := make([]chan T, numWorkers)
	for i := range chs {
		chs[i] = make(chan T, bufferSize)
	}
	pool := &workerPool[T]{chs: chs}
	pool.start(ctx, handleFn)
	return partitionedQueue[T]{workerPool: pool}
}
