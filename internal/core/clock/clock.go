// Package clock converts variable host frame deltas into fixed simulation
// steps.
package clock

// DefaultMaxSteps caps the steps emitted by one Tick call so a long host
// stall cannot snowball into ever longer frames.
const DefaultMaxSteps = 5

// Step is one fixed-frequency simulation advancement.
type Step struct {
	Number  uint64  // 1-based index of the step since the clock was created
	Seconds float32 // always the clock frequency
}

// SimClock accumulates wall time and releases it in fixed steps.
type SimClock struct {
	frequency   float64
	accumulator float64
	maxSteps    int
	steps       uint64
	dropped     float64
}

func New(frequencySecs float32) *SimClock {
	if frequencySecs <= 0 {
		frequencySecs = 0.5
	}
	return &SimClock{frequency: float64(frequencySecs), maxSteps: DefaultMaxSteps}
}

// SetMaxSteps changes the per-call cap. Values below 1 are ignored.
func (c *SimClock) SetMaxSteps(n int) {
	if n >= 1 {
		c.maxSteps = n
	}
}

func (c *SimClock) Frequency() float32 { return float32(c.frequency) }

func (c *SimClock) Accumulator() float32 { return float32(c.accumulator) }

// StepsRun is the total number of steps emitted so far.
func (c *SimClock) StepsRun() uint64 { return c.steps }

// DroppedSeconds is the wall time discarded by the per-call cap.
func (c *SimClock) DroppedSeconds() float64 { return c.dropped }

// Tick adds delta to the accumulator and returns the steps to run, oldest
// first. Whole steps beyond the cap are dropped; the fractional remainder is
// kept so the accumulator always ends below one frequency.
func (c *SimClock) Tick(deltaSecs float32) []Step {
	if deltaSecs > 0 {
		c.accumulator += float64(deltaSecs)
	}
	var out []Step
	for c.accumulator >= c.frequency {
		if len(out) == c.maxSteps {
			whole := float64(int64(c.accumulator / c.frequency))
			c.dropped += whole * c.frequency
			c.accumulator -= whole * c.frequency
			break
		}
		c.accumulator -= c.frequency
		c.steps++
		out = append(out, Step{Number: c.steps, Seconds: float32(c.frequency)})
	}
	return out
}

// Reset clears the accumulator and the step counter.
func (c *SimClock) Reset() {
	c.accumulator = 0
	c.steps = 0
	c.dropped = 0
}

// Remainder is the unspent time below one step, kept in saves.
func (c *SimClock) Remainder() float64 { return c.accumulator }

// Restore sets the step counter and the unspent remainder, used after
// loading a save. Remainders outside [0, frequency) are dropped.
func (c *SimClock) Restore(steps uint64, remainder float64) {
	c.steps = steps
	c.accumulator = 0
	if remainder > 0 && remainder < c.frequency {
		c.accumulator = remainder
	}
}
