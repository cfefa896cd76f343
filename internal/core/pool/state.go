package pool

import (
	"errors"
	"fmt"
)

var ErrCorruptState = errors.New("pool: corrupt state")

// Entry is one live value with its handle.
type Entry[T any] struct {
	ID    Handle `json:"id"`
	Value T      `json:"value"`
}

// State is the serialisable form of a Pool. Restoring it reproduces the
// exact slot generations, free stack and insertion order, so a loaded pool
// hands out the same handles as the pool that was saved.
type State[T any] struct {
	Generations []uint32   `json:"generations"`
	Free        []uint32   `json:"free"`
	Entries     []Entry[T] `json:"entries"`
}

// State captures the pool. Entries are listed in insertion order.
func (p *Pool[T]) State() State[T] {
	st := State[T]{
		Generations: make([]uint32, len(p.slots)),
		Free:        append([]uint32{}, p.free...),
		Entries:     make([]Entry[T], 0, p.live),
	}
	for i := range p.slots {
		st.Generations[i] = p.slots[i].generation
	}
	for idx := p.head; idx != none; idx = p.slots[idx].next {
		s := &p.slots[idx]
		st.Entries = append(st.Entries, Entry[T]{
			ID:    Handle{Generation: s.generation, Index: uint32(idx)},
			Value: s.value,
		})
	}
	return st
}

// Restore replaces the pool contents with st.
func (p *Pool[T]) Restore(st State[T]) error {
	slots := make([]slot[T], len(st.Generations))
	for i, g := range st.Generations {
		if g == Reserved {
			return fmt.Errorf("%w: slot %d has reserved generation", ErrCorruptState, i)
		}
		slots[i].generation = g
		slots[i].prev, slots[i].next = none, none
	}
	order := make([]uint32, 0, len(st.Entries))
	for _, e := range st.Entries {
		idx := e.ID.Index
		if int(idx) >= len(slots) || slots[idx].generation != e.ID.Generation || slots[idx].live {
			return fmt.Errorf("%w: entry %s", ErrCorruptState, e.ID)
		}
		slots[idx].live = true
		slots[idx].value = e.Value
		order = append(order, idx)
	}
	for _, idx := range st.Free {
		if int(idx) >= len(slots) || slots[idx].live {
			return fmt.Errorf("%w: free index %d", ErrCorruptState, idx)
		}
	}
	if len(st.Free)+len(order) != len(slots) {
		return fmt.Errorf("%w: %d slots, %d live, %d free", ErrCorruptState, len(slots), len(order), len(st.Free))
	}
	p.slots = slots
	p.free = append(p.free[:0], st.Free...)
	p.head, p.tail, p.live = none, none, 0
	for _, idx := range order {
		p.link(idx)
	}
	return nil
}
