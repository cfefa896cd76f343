// Package system holds a fixed-capacity registry of tick consumers that
// run in registration order.
package system

import (
	"errors"

	"github.com/heritagebuilder/heritage/internal/core/pool"
)

var ErrRegistryFull = errors.New("system: registry full")

// ID identifies a registered system.
type ID = pool.Handle

// Registry holds up to a fixed number of systems. Systems are never
// removed, so iteration order is registration order.
type Registry[S any] struct {
	systems  *pool.Pool[S]
	capacity int
}

func NewRegistry[S any](capacity int) *Registry[S] {
	return &Registry[S]{
		systems:  pool.New[S](capacity),
		capacity: capacity,
	}
}

func (r *Registry[S]) Register(s S) (ID, error) {
	if r.systems.Len() >= r.capacity {
		return pool.Invalid, ErrRegistryFull
	}
	id, _ := r.systems.Insert(s)
	return id, nil
}

func (r *Registry[S]) Get(id ID) (S, bool) {
	s, ok := r.systems.Get(id)
	if !ok {
		var zero S
		return zero, false
	}
	return *s, true
}

// Each visits systems in registration order.
func (r *Registry[S]) Each(fn func(ID, S)) {
	r.systems.Each(func(id pool.Handle, s *S) { fn(id, *s) })
}

func (r *Registry[S]) Len() int { return r.systems.Len() }
func (r *Registry[S]) Cap() int { return r.capacity }

// Find resolves id and narrows the system to T.
func Find[T, S any](r *Registry[S], id ID) (T, bool) {
	s, ok := r.Get(id)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := any(s).(T)
	return t, ok
}
