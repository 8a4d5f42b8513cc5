package pricing

import (
	crand "crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// SeedSource hands out seeds for pricing calls and hedging trajectories.
// It is the only random state shared between calls; every path gets its own
// generator seeded from (call seed, path index).
type SeedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeedSource creates a seed source. A zero seed draws the root seed from
// the operating system, so successive runs differ; any other value makes the
// whole sequence of calls reproducible.
func NewSeedSource(seed uint64) *SeedSource {
	if seed == 0 {
		seed = entropySeed()
	}
	return &SeedSource{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next call seed
func (s *SeedSource) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Uint64()
}

// NewRand returns an independently seeded generator owned by the caller
func (s *SeedSource) NewRand() *rand.Rand {
	return rand.New(rand.NewSource(s.Next()))
}

func entropySeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// pathSeed decorrelates neighbouring path indices before they reach PCG.
func pathSeed(callSeed uint64, index int) uint64 {
	return splitmix64(callSeed ^ (uint64(index)+1)*0x9E3779B97F4A7C15)
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
