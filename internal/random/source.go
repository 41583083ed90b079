// Package random provides the deterministic pseudo-random source shared by
// agent strategies and the custom-code sandbox.
//
// # Determinism
//
// A Source built from a seed string always produces the same sequence of
// draws. Numeric seeds are formatted in base 10 first, so NewSeededInt(42)
// and NewSeeded("42") are interchangeable. SetSeed replaces the generator
// state so the next draw restarts that sequence.
//
// # Concurrency
//
// Draws mutate internal state. A Source must not be shared by concurrent
// callers without external synchronization; give each game its own.
package random

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// Source is a seeded pseudo-random generator.
type Source struct {
	seed string
	rng  *rand.Rand
}

// NewSeeded returns a Source seeded from the given string.
func NewSeeded(seed string) *Source {
	s := &Source{}
	s.SetSeed(seed)
	return s
}

// NewSeededInt returns a Source seeded from the decimal form of seed.
func NewSeededInt(seed int64) *Source {
	return NewSeeded(strconv.FormatInt(seed, 10))
}

// New returns a Source with a fresh seed. It prefers crypto/rand and falls
// back to the wall clock.
func New() *Source {
	seed, err := NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	return NewSeededInt(seed)
}

// SetSeed re-seeds the generator.
func (s *Source) SetSeed(seed string) {
	s.seed = seed
	s.rng = rand.New(rand.NewSource(hashSeed(seed)))
}

// Seed returns the seed the current sequence started from.
func (s *Source) Seed() string {
	return s.seed
}

// Float64 returns a float in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// IntRange returns an integer in [min, max) as floor(Float64()*(max-min))+min.
func (s *Source) IntRange(min, max int) int {
	return int(math.Floor(s.Float64()*float64(max-min))) + min
}

// Bool returns true when a draw is at least 0.5.
func (s *Source) Bool() bool {
	return s.Float64() >= 0.5
}

// FloatRange returns a float in [min, max).
func (s *Source) FloatRange(min, max float64) float64 {
	return s.Float64()*(max-min) + min
}

// Shuffle returns a Fisher–Yates shuffled copy of items.
func Shuffle[T any](s *Source, items []T) []T {
	shuffled := make([]T, len(items))
	copy(shuffled, items)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := int(s.Float64() * float64(i+1))
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// Choice returns a uniformly chosen element, or false when items is empty.
func Choice[T any](s *Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[s.IntRange(0, len(items))], true
}

// Sample returns n elements drawn without replacement. When n covers the
// whole input the full shuffle is returned.
func Sample[T any](s *Source, items []T, n int) []T {
	shuffled := Shuffle(s, items)
	if n >= len(items) {
		return shuffled
	}
	if n < 0 {
		n = 0
	}
	return shuffled[:n]
}

func hashSeed(seed string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64())
}
