// Package rng provides the simulation's only source of randomness: a seeded
// PCG generator whose state is part of every save.
package rng

import (
	"encoding/hex"
	"fmt"
	"math/rand/v2"
)

// DefaultSeed is used when game.json does not set sim.random_seed.
const DefaultSeed uint64 = 0xCAFE1CAFE2CAFE3A

// streamSalt derives the PCG increment from the seed.
const streamSalt uint64 = 0x9E3779B97F4A7C15

// Random wraps a PCG source. Not safe for concurrent use.
type Random struct {
	src *rand.PCG
	r   *rand.Rand
}

func New(seed uint64) *Random {
	src := rand.NewPCG(seed, seed^streamSalt)
	return &Random{src: src, r: rand.New(src)}
}

// Reseed resets the generator as if freshly created with seed.
func (g *Random) Reseed(seed uint64) {
	g.src.Seed(seed, seed^streamSalt)
}

func (g *Random) Uint64() uint64 { return g.r.Uint64() }

// IntN returns a value in [0, n). n <= 0 returns 0 without consuming state.
func (g *Random) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return g.r.IntN(n)
}

// Range returns a value in [lo, hi].
func (g *Random) Range(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.IntN(hi-lo+1)
}

func (g *Random) Float32() float32 { return g.r.Float32() }

// Chance returns true with probability p.
func (g *Random) Chance(p float32) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return g.r.Float32() < p
}

// State returns the generator state as a hex string for saves.
func (g *Random) State() (string, error) {
	b, err := g.src.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal rng: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// SetState restores a state produced by State.
func (g *Random) SetState(s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode rng state: %w", err)
	}
	if err := g.src.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("unmarshal rng: %w", err)
	}
	return nil
}
