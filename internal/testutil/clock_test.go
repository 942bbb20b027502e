package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevisionClock_StartsAtStart(t *testing.T) {
	clock := NewRevisionClock(0)
	assert.Equal(t, int64(0), clock.Current())
	assert.Empty(t, clock.Issued())

	clock = NewRevisionClock(41)
	assert.Equal(t, int64(41), clock.Current())
	assert.Equal(t, int64(42), clock.Next())
}

func TestRevisionClock_NextIsMonotonic(t *testing.T) {
	clock := NewRevisionClock(0)

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(3), clock.Next())
	assert.Equal(t, int64(3), clock.Current())
	assert.Equal(t, []int64{1, 2, 3}, clock.Issued())
}

func TestRevisionClock_ResetRewinds(t *testing.T) {
	clock := NewRevisionClock(10)
	clock.Next()
	clock.Next()

	clock.Reset()
	assert.Equal(t, int64(10), clock.Current())
	assert.Empty(t, clock.Issued())
	assert.Equal(t, int64(11), clock.Next())
}

func TestRevisionClock_IssuedIsACopy(t *testing.T) {
	clock := NewRevisionClock(0)
	clock.Next()

	issued := clock.Issued()
	issued[0] = 99
	assert.Equal(t, []int64{1}, clock.Issued())
}

func TestRevisionClock_ThreadSafe(t *testing.T) {
	clock := NewRevisionClock(0)
	const goroutines = 50
	const calls = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				clock.Next()
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, rev := range clock.Issued() {
		require.False(t, seen[rev], "duplicate revision %d", rev)
		seen[rev] = true
	}
	assert.Len(t, seen, goroutines*calls)
	assert.Equal(t, int64(goroutines*calls), clock.Current())
}
