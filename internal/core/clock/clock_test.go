package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedStepsUseFrequency(t *testing.T) {
	c := New(0.5)
	assert.Empty(t, c.Tick(0.25))
	steps := c.Tick(0.25)
	require.Len(t, steps, 1)
	assert.Equal(t, float32(0.5), steps[0].Seconds)
	assert.Equal(t, uint64(1), steps[0].Number)
	assert.Equal(t, float32(0), c.Accumulator())
}

func TestTicksMatchElapsedTime(t *testing.T) {
	deltas := []float32{0.125, 0.75, 0.0625, 1.5, 0.25, 0.3125}
	c := New(0.5)
	total := 0
	var elapsed float32
	for _, d := range deltas {
		total += len(c.Tick(d))
		elapsed += d
	}
	assert.Equal(t, int(elapsed/0.5), total)
	assert.Less(t, c.Accumulator(), float32(0.5))
}

func TestCapDropsExcessTime(t *testing.T) {
	c := New(0.5)
	steps := c.Tick(10.25)
	assert.Len(t, steps, DefaultMaxSteps)
	assert.Less(t, c.Accumulator(), float32(0.5))
	assert.InDelta(t, 0.25, c.Accumulator(), 1e-6)
	assert.InDelta(t, 7.5, c.DroppedSeconds(), 1e-6)
	assert.Equal(t, uint64(5), c.StepsRun())
}

func TestNegativeDeltaIgnored(t *testing.T) {
	c := New(1)
	assert.Empty(t, c.Tick(-3))
	assert.Equal(t, float32(0), c.Accumulator())
}

func TestRestoreKeepsNumbering(t *testing.T) {
	c := New(1)
	c.Restore(41, 0)
	steps := c.Tick(1)
	require.Len(t, steps, 1)
	assert.Equal(t, uint64(42), steps[0].Number)
}

func TestRestoreKeepsRemainder(t *testing.T) {
	a := New(0.5)
	a.Tick(0.75)
	require.InDelta(t, 0.25, a.Remainder(), 1e-9)

	b := New(0.5)
	b.Restore(a.StepsRun(), a.Remainder())
	for _, d := range []float32{0.25, 0.375, 0.125} {
		assert.Equal(t, a.Tick(d), b.Tick(d), "delta %v", d)
	}
	assert.Equal(t, a.StepsRun(), b.StepsRun())

	b.Restore(3, 0.75)
	assert.Zero(t, b.Remainder(), "remainder of a whole step or more is dropped")
	b.Restore(3, -1)
	assert.Zero(t, b.Remainder())
}
