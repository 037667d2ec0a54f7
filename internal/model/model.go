// Package model holds the types shared by the dispatchers in internal/handlers.
package model

// ScopeConfig sizes a dispatcher scope.
type ScopeConfig struct {
	BufferSize int // default: 1
	NumWorkers int // default: 1
}

func NewScopeConfig(bufferSize int, numWorkers int) ScopeConfig {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return ScopeConfig{
		BufferSize: bufferSize,
		NumWorkers: numWorkers,
	}
}

// Partitionable messages are routed to a worker by key, so messages sharing a
// key are handled in the order they were sent.
type Partitionable interface {
	PartitionKey() string
}

// Unpartitioned is the key used by messages that do not care about routing.
const Unpartitioned = "unpartitioned"
