package simulation

import "sync"

// BedPool is the one contended resource in the department: a fixed set of
// numbered beds (1..size). It does not track occupancy itself — the patient
// records are the source of truth — but its mutex serializes every
// read-occupied/assign-free sequence, so the tick loop and concurrent manual
// bed assignment can never both claim the same bed.
type BedPool struct {
	mu   sync.Mutex
	size int
}

// NewBedPool creates a pool of size beds numbered 1..size
func NewBedPool(size int) *BedPool {
	return &BedPool{size: size}
}

// Size returns the number of beds in the pool
func (p *BedPool) Size() int {
	return p.size
}

// WithLock runs fn while holding the pool lock. fn must perform both the
// occupancy read and the assigning write before returning.
func (p *BedPool) WithLock(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn()
}

// LowestFree returns the lowest bed number not present in occupied, or
// false when every bed is taken. Callers must hold the pool lock.
func (p *BedPool) LowestFree(occupied []int) (int, bool) {
	taken := make(map[int]bool, len(occupied))
	for _, bed := range occupied {
		taken[bed] = true
	}
	for bed := 1; bed <= p.size; bed++ {
		if !taken[bed] {
			return bed, true
		}
	}
	return 0, false
}
