package handlers_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on-the-ground/effect_ive_todo/internal/handlers"
)

// line is a log line routed by the execution that produced it.
type line struct {
	execution string
	seq       int
}

func (l line) PartitionKey() string { return l.execution }

func TestSingleQueue_SerializesStateChanges(t *testing.T) {
	ctx := context.Background()

	// Unsynchronized on purpose: only the single worker touches it.
	counter := 0
	dispatcher := handlers.NewSingleQueue(ctx, 8, func(_ context.Context, delta int) {
		counter += delta
	})

	var senders sync.WaitGroup
	for i := 0; i < 4; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for j := 0; j < 50; j++ {
				dispatcher.GetChannelOf(1) <- 1
			}
		}()
	}
	senders.Wait()
	dispatcher.Close()

	assert.Equal(t, 200, counter)
}

func TestPartitionedQueue_KeepsOrderPerExecution(t *testing.T) {
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen = map[string][]int{}
	)
	dispatcher := handlers.NewPartitionedQueue(ctx, 4, 16, func(_ context.Context, l line) {
		mu.Lock()
		defer mu.Unlock()
		seen[l.execution] = append(seen[l.execution], l.seq)
	})

	executions := []string{"exec-a", "exec-b", "exec-c"}
	for seq := 0; seq < 20; seq++ {
		for _, exec := range executions {
			l := line{execution: exec, seq: seq}
			dispatcher.GetChannelOf(l) <- l
		}
	}
	dispatcher.Close()

	mu.Lock()
	defer mu.Unlock()
	for _, exec := range executions {
		require.Len(t, seen[exec], 20, exec)
		for i, seq := range seen[exec] {
			if seq != i {
				t.Fatalf("%s: lines out of order: %v", exec, seen[exec])
			}
		}
	}
}

func TestPartitionedQueue_SameKeySameChannel(t *testing.T) {
	dispatcher := handlers.NewPartitionedQueue(context.Background(), 8, 1, func(context.Context, line) {})
	defer dispatcher.Close()

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("exec-%d", i)
		assert.Equal(t,
			dispatcher.GetChannelOf(line{execution: key, seq: 0}),
			dispatcher.GetChannelOf(line{execution: key, seq: 99}),
		)
	}
}

func TestSingleQueue_FullBufferAppliesBackpressure(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	dispatcher := handlers.NewSingleQueue(context.Background(), 1, func(context.Context, int) {
		entered <- struct{}{}
		<-release
	})
	defer dispatcher.Close()

	ch := dispatcher.GetChannelOf(0)
	ch <- 1
	<-entered
	ch <- 2 // fills the buffer

	sent := make(chan struct{})
	go func() {
		ch <- 3
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("send should block while the worker is busy and the buffer full")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("send never unblocked")
	}
}

func TestWorkerDispatcher_CancelClosesChannels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan int, 128)
	dispatcher := handlers.NewSingleQueue(ctx, 1, func(_ context.Context, msg int) {
		handled <- msg
	})

	dispatcher.GetChannelOf(0) <- 7
	select {
	case got := <-handled:
		assert.Equal(t, 7, got)
	case <-time.After(time.Second):
		t.Fatal("message was not handled")
	}

	cancel()
	require.Eventually(t, func() (closed bool) {
		defer func() { closed = recover() != nil }()
		select {
		case dispatcher.GetChannelOf(0) <- 8:
		default:
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestSingleQueue_CloseDrainsBufferedMessages(t *testing.T) {
	var processed []int
	dispatcher := handlers.NewSingleQueue(context.Background(), 10, func(_ context.Context, msg int) {
		processed = append(processed, msg)
	})

	for i := 0; i < 5; i++ {
		dispatcher.GetChannelOf(i) <- i
	}
	dispatcher.Close()
	dispatcher.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, processed)
}
