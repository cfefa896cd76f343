package pool

import "fmt"

// Reserved is the generation value of a null handle. Live slots start at 1.
const Reserved uint32 = 0

// Handle is a generational index into a Pool. The generation increments each
// time a slot is freed, so handles held across a removal never alias the
// slot's next occupant.
type Handle struct {
	Generation uint32 `json:"generation"`
	Index      uint32 `json:"index"`
}

// Invalid is the null handle.
var Invalid = Handle{}

func (h Handle) IsValid() bool { return h.Generation != Reserved }

func (h Handle) String() string {
	if !h.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("#%d@%d", h.Index, h.Generation)
}

const none int32 = -1

type slot[T any] struct {
	generation uint32
	live       bool
	prev, next int32 // insertion-order links between live slots
	value      T
}

// Pool is a slot vector with a free-index stack and per-slot generations.
// Live slots are linked in insertion order, so Insert and Remove are O(1).
// Single-goroutine access only (simulation tick).
type Pool[T any] struct {
	slots      []slot[T]
	free       []uint32
	head, tail int32
	live       int
}

// New creates a pool with room for capacity values before reallocating.
// The capacity is a hint; the pool grows on demand.
func New[T any](capacity int) *Pool[T] {
	return &Pool[T]{
		slots: make([]slot[T], 0, capacity),
		free:  make([]uint32, 0, capacity/4),
		head:  none,
		tail:  none,
	}
}

func (p *Pool[T]) link(idx uint32) {
	s := &p.slots[idx]
	s.prev, s.next = p.tail, none
	if p.tail == none {
		p.head = int32(idx)
	} else {
		p.slots[p.tail].next = int32(idx)
	}
	p.tail = int32(idx)
	p.live++
}

func (p *Pool[T]) unlink(idx uint32) {
	s := &p.slots[idx]
	if s.prev == none {
		p.head = s.next
	} else {
		p.slots[s.prev].next = s.next
	}
	if s.next == none {
		p.tail = s.prev
	} else {
		p.slots[s.next].prev = s.prev
	}
	s.prev, s.next = none, none
	p.live--
}

// Insert stores v and returns its handle plus a pointer to the stored value.
// The pointer is valid until the next Insert.
func (p *Pool[T]) Insert(v T) (Handle, *T) {
	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		idx = uint32(len(p.slots))
		p.slots = append(p.slots, slot[T]{generation: 1})
	}
	s := &p.slots[idx]
	s.live = true
	s.value = v
	p.link(idx)
	return Handle{Generation: s.generation, Index: idx}, &s.value
}

// Get resolves a handle. It returns false for null, stale or removed handles.
func (p *Pool[T]) Get(h Handle) (*T, bool) {
	if !h.IsValid() || int(h.Index) >= len(p.slots) {
		return nil, false
	}
	s := &p.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return nil, false
	}
	return &s.value, true
}

func (p *Pool[T]) Alive(h Handle) bool {
	_, ok := p.Get(h)
	return ok
}

// Remove frees the slot behind h and bumps its generation.
func (p *Pool[T]) Remove(h Handle) bool {
	if _, ok := p.Get(h); !ok {
		return false // already removed (stale reference)
	}
	s := &p.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	s.generation++
	if s.generation == Reserved {
		s.generation = 1
	}
	p.free = append(p.free, h.Index)
	p.unlink(h.Index)
	return true
}

func (p *Pool[T]) Len() int { return p.live }

// Each visits live values in insertion order. Values inserted during the
// walk are not visited; values removed during the walk are skipped.
func (p *Pool[T]) Each(fn func(Handle, *T)) {
	for _, h := range p.Handles() {
		if v, ok := p.Get(h); ok {
			fn(h, v)
		}
	}
}

// Handles returns the live handles in insertion order.
func (p *Pool[T]) Handles() []Handle {
	out := make([]Handle, 0, p.live)
	for idx := p.head; idx != none; idx = p.slots[idx].next {
		out = append(out, Handle{Generation: p.slots[idx].generation, Index: uint32(idx)})
	}
	return out
}

// Clear removes every value, bumping all live generations.
func (p *Pool[T]) Clear() {
	for _, h := range p.Handles() {
		p.Remove(h)
	}
}
