package pure

import (
	"sync"
	"sync/atomic"

	"github.com/on-the-ground/effect_ive_todo/shared/helper"
)

// Trie is a bounded memo table keyed by key paths. It keeps two generations:
// when the current one is full, the older one is dropped and a fresh one
// takes its place, so recently stored entries survive one rotation.
type Trie[O any] struct {
	mu      sync.Mutex // serializes rotation
	memos   [2]atomic.Pointer[sync.Map]
	headIdx atomic.Uint32
	size    atomic.Uint32
	maxSize uint32
}

func NewTrie[O any](maxSize uint32) *Trie[O] {
	if maxSize == 0 {
		panic("maxSize should be greater than 0")
	}
	t := &Trie[O]{maxSize: maxSize}
	t.memos[0].Store(&sync.Map{})
	t.memos[1].Store(&sync.Map{})
	return t
}

func (t *Trie[O]) Load(keys []Key) (O, bool) {
	head := t.headIdx.Load()
	for _, idx := range [2]uint32{head, 1 - head} {
		if m, k, ok := lookup(t.memos[idx].Load(), keys); ok {
			if v, ok := helper.GetTypedValueOf2[O](func() (any, bool) { return m.Load(k) }); ok {
				return v, true
			}
		}
	}
	var zero O
	return zero, false
}

func (t *Trie[O]) Store(keys []Key, value O) {
	if t.size.Add(1) > t.maxSize {
		t.rotate()
	}
	m, k := traverse(t.memos[t.headIdx.Load()].Load(), keys)
	m.Store(k, value)
}

func (t *Trie[O]) rotate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.size.Load() <= t.maxSize {
		return
	}
	next := 1 - t.headIdx.Load()
	t.memos[next].Store(&sync.Map{})
	t.headIdx.Store(next)
	t.size.Store(1)
}

// lookup walks keys without creating nodes.
func lookup(m *sync.Map, keys []Key) (*sync.Map, any, bool) {
	if len(keys) == 0 {
		panic("lookup: empty keys")
	}
	for _, k := range keys[:len(keys)-1] {
		v, ok := m.Load(k)
		if !ok {
			return nil, nil, false
		}
		m = v.(*sync.Map)
	}
	return m, keys[len(keys)-1], true
}

// traverse walks keys, creating the missing nodes.
func traverse(m *sync.Map, keys []Key) (*sync.Map, any) {
	if len(keys) == 0 {
		panic("traverse: empty keys")
	}
	for _, k := range keys[:len(keys)-1] {
		v, _ := m.LoadOrStore(k, &sync.Map{})
		m = v.(*sync.Map)
	}
	return m, keys[len(keys)-1]
}
