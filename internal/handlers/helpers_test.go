package handlers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/on-the-ground/effect_ive_todo/internal/model"
)

func TestPartitionOf(t *testing.T) {
	assert.Equal(t, 0, partitionOf("exec-1", 1))
	assert.Equal(t, 0, partitionOf(model.Unpartitioned, 8))

	used := map[int]bool{}
	for i := 0; i < 64; i++ {
		key := fmt.Sprintf("exec-%d", i)
		p := partitionOf(key, 4)
		if p < 0 || p >= 4 {
			t.Fatalf("partition %d out of range for %s", p, key)
		}
		assert.Equal(t, p, partitionOf(key, 4), "stable per key")
		used[p] = true
	}
	assert.Greater(t, len(used), 1, "keys spread over partitions")

	assert.Panics(t, func() { partitionOf("x", 0) })
}
