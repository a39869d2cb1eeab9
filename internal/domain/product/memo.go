package product

import "sync"

// memo caches the last computed value for a single key, the same way a
// selector library keeps its last result.
type memo[K comparable, V any] struct {
	mu    sync.Mutex
	valid bool
	key   K
	value V
	hits  int
}

func (m *memo[K, V]) get(key K, compute func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid && m.key == key {
		m.hits++
		return m.value
	}
	m.key = key
	m.value = compute()
	m.valid = true
	return m.value
}

type viewKey struct {
	generation uint64
	criteria   Criteria
}
