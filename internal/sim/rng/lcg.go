// Package rng provides the seeded linear-congruential generator that every
// source of world randomness draws from.
package rng

const (
	lcgA = 1664525
	lcgC = 1013904223
	lcgM = 1 << 32
)

// LCG is a deterministic generator: s = (s*A + C) mod 2^32.
// The recurrence is pure integer arithmetic; only the final division in
// Next touches floating point, so sequences are identical on every platform.
type LCG struct {
	initial uint64
	state   uint64
}

// New creates a generator seeded with seed (reduced mod 2^32).
func New(seed int64) *LCG {
	r := &LCG{}
	r.SetSeed(seed)
	return r
}

// SetSeed replaces both the initial and the current state.
func (r *LCG) SetSeed(seed int64) {
	r.initial = uint64(seed) % lcgM
	r.state = r.initial
}

// Reset rewinds the stream to the last seed.
func (r *LCG) Reset() { r.state = r.initial }

// State exposes the current state for snapshots.
func (r *LCG) State() uint64 { return r.state }

// Restore resumes the stream from a state previously returned by State.
func (r *LCG) Restore(state uint64) { r.state = state % lcgM }

// Next returns a value in [0, 1).
func (r *LCG) Next() float64 {
	r.state = (r.state*lcgA + lcgC) % lcgM
	return float64(r.state) / lcgM
}

// Int returns an integer in [min, max], both inclusive.
func (r *LCG) Int(min, max int) int {
	if max < min {
		min, max = max, min
	}
	span := max - min + 1
	return min + int(r.Next()*float64(span))
}

// Float returns a value in [min, max).
func (r *LCG) Float(min, max float64) float64 {
	return min + r.Next()*(max-min)
}

// Chance reports whether a single draw falls below p.
func (r *LCG) Chance(p float64) bool {
	return r.Next() < p
}
