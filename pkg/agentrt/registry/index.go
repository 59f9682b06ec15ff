package registry

import "sync"

// index is a thread-safe map used for the registry's record and tier
// lookups. It uses sync.RWMutex for read-heavy workloads.
type index[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

func newIndex[K comparable, V any]() *index[K, V] {
	return &index[K, V]{
		entries: make(map[K]V),
	}
}

func (r *index[K, V]) Set(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

func (r *index[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

func (r *index[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

func (r *index[K, V]) Delete(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

func (r *index[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
