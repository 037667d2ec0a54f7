package handlers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_todo/internal/handlers"
	"github.com/on-the-ground/effect_ive_todo/internal/model"
	"github.com/stretchr/testify/assert"
)

type mockPartitionable struct {
	id   string
	hash string
}

func (m mockPartitionable) PartitionKey() string { return m.hash }

func TestFireAndForgetHandler_BasicExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var receivedPayload string
	done := make(chan bool)

	handler := handlers.NewFireAndForgetHandler(
		ctx,
		model.ScopeConfig{BufferSize: 10},
		func(ctx context.Context, msg mockPartitionable) {
			receivedPayload = msg.id
			done <- true
		},
		func() {}, // no-op teardown
	)
	defer handler.Close()

	handler.Fire(ctx, mockPartitionable{id: "hello"})

	select {
	case <-done:
		assert.Equal(t, "hello", receivedPayload)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for handler")
	}
}

func TestFireAndForgetHandler_SameKeyKeepsOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received []string

	handler := handlers.NewFireAndForgetHandler(
		ctx,
		model.ScopeConfig{
			BufferSize: 5,
			NumWorkers: 3,
		},
		func(ctx context.Context, msg mockPartitionable) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, msg.id)
		},
		nil,
	)

	handler.Fire(ctx, mockPartitionable{id: "first", hash: "same"})
	handler.Fire(ctx, mockPartitionable{id: "second", hash: "same"})
	handler.Fire(ctx, mockPartitionable{id: "third", hash: "same"})

	// Close drains what is already queued.
	handler.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, received, "messages with same key should be processed in order")
}

func TestFireAndForgetHandler_CancelContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(100 * time.Millisecond)

	var called bool

	handler := handlers.NewFireAndForgetHandler(
		ctx,
		model.ScopeConfig{BufferSize: 10, NumWorkers: 2},
		func(ctx context.Context, msg mockPartitionable) {
			called = true
		},
		func() {},
	)
	defer handler.Close()

	handler.Fire(ctx, mockPartitionable{id: "should-not-send"})

	assert.False(t, called, "handler should not have been called")
}

func TestFireAndForgetHandler_TeardownRunsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	teardowns := 0
	handler := handlers.NewFireAndForgetHandler(
		ctx,
		model.NewScopeConfig(1, 1),
		func(context.Context, mockPartitionable) {},
		func() { teardowns++ },
	)

	handler.Close()
	handler.Close()
	handler.Fire(ctx, mockPartitionable{id: "after-close"}) // must not panic

	assert.Equal(t, 1, teardowns)
}
