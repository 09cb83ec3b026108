package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingClock(t *testing.T) {
	c := NewRecordingClock()
	assert.Empty(t, c.Issued())

	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, []int64{1, 2}, c.Issued())
}

func TestRecordingClockAt(t *testing.T) {
	c := NewRecordingClockAt(41)
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, []int64{42}, c.Issued())
}

func TestRecordingClock_IssuedIsACopy(t *testing.T) {
	c := NewRecordingClock()
	c.Next()
	got := c.Issued()
	got[0] = 99
	assert.Equal(t, []int64{1}, c.Issued())
}

func TestRecordingClock_ConcurrentNextIsGapFree(t *testing.T) {
	c := NewRecordingClock()
	const workers, calls = 8, 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				c.Next()
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, n := range c.Issued() {
		require.False(t, seen[n], "duplicate %d", n)
		seen[n] = true
	}
	for n := int64(1); n <= workers*calls; n++ {
		assert.True(t, seen[n], "missing %d", n)
	}
}
