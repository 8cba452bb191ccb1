package events

import (
	"slices"
	"sync"
)

// Handler receives one emitted value.
type Handler[T any] func(T)

type subscriber[T any] struct {
	id uint64
	fn Handler[T]
}

// Registry is an ordered set of subscribers for one event type.
// The zero value is ready to use.
type Registry[T any] struct {
	mu     sync.RWMutex
	subs   []subscriber[T]
	nextID uint64
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent.
func (r *Registry[T]) Subscribe(fn Handler[T]) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriber[T]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

// Once registers fn for a single emission.
func (r *Registry[T]) Once(fn Handler[T]) (unsubscribe func()) {
	var unsub func()
	var fired sync.Once
	unsub = r.Subscribe(func(v T) {
		fired.Do(func() {
			unsub()
			fn(v)
		})
	})
	return unsub
}

// Emit calls every subscriber in registration order.
func (r *Registry[T]) Emit(v T) {
	r.mu.RLock()
	if len(r.subs) == 0 {
		r.mu.RUnlock()
		return
	}
	snapshot := make([]subscriber[T], len(r.subs))
	copy(snapshot, r.subs)
	r.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

// Len returns the number of current subscribers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s.id == id {
			r.subs = slices.Delete(r.subs, i, i+1)
			return
		}
	}
}
