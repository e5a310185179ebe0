package gonitf

import "sync"

// registry memoizes one handle per segment index. The first caller for a
// key builds the handle under the lock; later lookups only read the map.
// A failed build stores nothing.
type registry[T any] struct {
	mu      sync.RWMutex
	handles map[int]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{handles: make(map[int]T)}
}

// get returns the handle for key, building it with build on first use.
func (r *registry[T]) get(key int, build func(int) (T, error)) (T, error) {
	r.mu.RLock()
	h, ok := r.handles[key]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok {
		return h, nil
	}
	h, err := build(key)
	if err != nil {
		var zero T
		return zero, err
	}
	r.handles[key] = h
	return h, nil
}

// len returns the number of constructed handles
func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// reset drops every handle.
func (r *registry[T]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.handles)
}
