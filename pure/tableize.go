// Package pure memoizes pure functions in bounded tables.
//
// Callers name the comparable key identifying an argument, so values that are
// not comparable themselves, like snapshots holding slices, can be memoized
// under a revision or an id.
package pure

// Key is one level of a table key path. Keys must be comparable.
type Key = any

// Memoize caches fn's result under key(i).
func Memoize[I any, K comparable, O any](key func(I) K, fn func(I) O, maxTableSize uint32) func(I) O {
	memo := NewTrie[O](maxTableSize)
	return func(i I) O {
		return memoized(memo, []Key{key(i)}, func() O { return fn(i) })
	}
}

// Memoize2 caches fn's result under key(i1), then i2.
func Memoize2[I1 any, K, I2 comparable, O any](key func(I1) K, fn func(I1, I2) O, maxTableSize uint32) func(I1, I2) O {
	memo := NewTrie[O](maxTableSize)
	return func(i1 I1, i2 I2) O {
		return memoized(memo, []Key{key(i1), i2}, func() O { return fn(i1, i2) })
	}
}

func memoized[O any](memo *Trie[O], path []Key, compute func() O) O {
	if v, ok := memo.Load(path); ok {
		return v
	}
	v := compute()
	memo.Store(path, v)
	return v
}
