package simulation

import (
	"math/rand"
	"time"
)

// Rand is the engine's source of randomness. The progression policy draws
// from it for the dwell-time threshold and the er_bed branch weights;
// tests substitute a scripted implementation for determinism.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// NewRand returns a math/rand source. Seed 0 means "seed from the clock",
// so unseeded runs differ while a configured seed reproduces a run exactly.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
