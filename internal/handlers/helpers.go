package handlers

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/on-the-ground/effect_ive_todo/internal/model"
)

// partitionOf picks which of n channels serves key. Unpartitioned messages all
// go to the first channel.
func partitionOf(key string, n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("handlers: %d partitions", n))
	}
	if n == 1 || key == model.Unpartitioned {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}
