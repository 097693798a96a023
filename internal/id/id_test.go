package id

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentifier(t *testing.T) {
	a := NewIdentifier()
	b := NewIdentifier()

	u, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "identifiers sort in generation order")
}

func TestClock_Next(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	c := NewClockAt(func() time.Time { return fixed })

	tests := []struct {
		want int64
	}{
		{fixed.UnixMilli()},
		{fixed.UnixMilli() + 1},
		{fixed.UnixMilli() + 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Next())
	}
}

func TestClock_FollowsWallClock(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	c := NewClockAt(func() time.Time { return now })

	first := c.Next()
	now = now.Add(time.Second)
	assert.Equal(t, first+1000, c.Next())
}

func TestClock_Observe(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	c := NewClockAt(func() time.Time { return fixed })

	c.Observe(fixed.UnixMilli() + 500)
	assert.Equal(t, fixed.UnixMilli()+501, c.Next())

	c.Observe(0)
	assert.Equal(t, fixed.UnixMilli()+502, c.Next())
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	const n = 200

	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := c.Next()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
