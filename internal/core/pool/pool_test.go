package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSafetyAcrossReuse(t *testing.T) {
	p := New[string](2)

	a, _ := p.Insert("a")
	assert.Equal(t, uint32(1), a.Generation)
	assert.True(t, a.IsValid())

	v, ok := p.Get(a)
	require.True(t, ok)
	assert.Equal(t, "a", *v)

	require.True(t, p.Remove(a))
	assert.False(t, p.Remove(a), "double remove must be rejected")

	b, _ := p.Insert("b")
	assert.Equal(t, a.Index, b.Index, "slot is reused")
	assert.NotEqual(t, a.Generation, b.Generation)

	_, ok = p.Get(a)
	assert.False(t, ok, "stale handle must not resolve to the new occupant")
	v, ok = p.Get(b)
	require.True(t, ok)
	assert.Equal(t, "b", *v)
}

func TestNullHandle(t *testing.T) {
	p := New[int](0)
	p.Insert(7)
	_, ok := p.Get(Invalid)
	assert.False(t, ok)
	assert.False(t, Invalid.IsValid())
}

func TestEachFollowsInsertionOrder(t *testing.T) {
	p := New[int](4)
	h1, _ := p.Insert(1)
	p.Insert(2)
	p.Insert(3)
	p.Remove(h1)
	p.Insert(4) // reuses slot 0 but is last in order

	var got []int
	p.Each(func(_ Handle, v *int) { got = append(got, *v) })
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestRemoveRelinksHeadMiddleAndTail(t *testing.T) {
	p := New[int](8)
	var hs []Handle
	for v := range 5 {
		h, _ := p.Insert(v)
		hs = append(hs, h)
	}
	values := func() []int {
		var out []int
		p.Each(func(_ Handle, v *int) { out = append(out, *v) })
		return out
	}

	require.True(t, p.Remove(hs[2]))
	assert.Equal(t, []int{0, 1, 3, 4}, values())
	require.True(t, p.Remove(hs[0]))
	assert.Equal(t, []int{1, 3, 4}, values())
	require.True(t, p.Remove(hs[4]))
	assert.Equal(t, []int{1, 3}, values())
	assert.Equal(t, 2, p.Len())

	p.Insert(9)
	assert.Equal(t, []int{1, 3, 9}, values())

	p.Clear()
	assert.Zero(t, p.Len())
	assert.Empty(t, p.Handles())
	p.Insert(5)
	assert.Equal(t, []int{5}, values())
}

func TestEachToleratesRemovalDuringWalk(t *testing.T) {
	p := New[int](4)
	p.Insert(1)
	h2, _ := p.Insert(2)
	p.Insert(3)

	var got []int
	p.Each(func(h Handle, v *int) {
		got = append(got, *v)
		if *v == 1 {
			p.Remove(h2)
		}
	})
	assert.Equal(t, []int{1, 3}, got)
}

func TestStateRoundTripPreservesHandles(t *testing.T) {
	p := New[int](4)
	h1, _ := p.Insert(10)
	p.Insert(20)
	p.Remove(h1)
	p.Insert(30)

	st := p.State()
	q := New[int](0)
	require.NoError(t, q.Restore(st))
	assert.Equal(t, p.Handles(), q.Handles())

	// Both pools must hand out the same next handle.
	a, _ := p.Insert(40)
	b, _ := q.Insert(40)
	assert.Equal(t, a, b)

	require.True(t, q.Remove(q.Handles()[0]))
	var got []int
	q.Each(func(_ Handle, v *int) { got = append(got, *v) })
	assert.Equal(t, []int{30, 40}, got)
}

func TestRestoreRejectsCorruptState(t *testing.T) {
	q := New[int](0)
	err := q.Restore(State[int]{
		Generations: []uint32{1},
		Entries:     []Entry[int]{{ID: Handle{Generation: 2, Index: 0}, Value: 1}},
	})
	assert.ErrorIs(t, err, ErrCorruptState)
}
