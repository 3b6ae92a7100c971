package simulation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBedPool_LowestFree(t *testing.T) {
	pool := NewBedPool(4)

	tests := []struct {
		name     string
		occupied []int
		want     int
		ok       bool
	}{
		{"empty pool", nil, 1, true},
		{"gap in the middle", []int{1, 2, 4}, 3, true},
		{"only the last free", []int{1, 2, 3}, 4, true},
		{"all taken", []int{1, 2, 3, 4}, 0, false},
		{"out-of-range numbers ignored", []int{7, 9}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pool.LowestFree(tt.occupied)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBedPool_WithLockPropagatesError(t *testing.T) {
	pool := NewBedPool(2)
	wantErr := errors.New("boom")

	err := pool.WithLock(func() error { return wantErr })
	assert.Equal(t, wantErr, err)

	assert.NoError(t, pool.WithLock(func() error { return nil }))
	assert.Equal(t, 2, pool.Size())
}
