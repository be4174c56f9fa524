package calendar

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle(t *testing.T) {
	user := uuid.New()
	other := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("first acquire succeeds", func(t *testing.T) {
		th := NewThrottle(5*time.Minute, clock)
		assert.True(t, th.TryAcquire(user))
	})

	t.Run("in-flight sync blocks a second acquire", func(t *testing.T) {
		th := NewThrottle(5*time.Minute, clock)
		require.True(t, th.TryAcquire(user))
		assert.False(t, th.TryAcquire(user))
	})

	t.Run("TTL window applies after release", func(t *testing.T) {
		th := NewThrottle(5*time.Minute, clock)
		require.True(t, th.TryAcquire(user))
		th.Release(user)

		assert.False(t, th.TryAcquire(user), "inside the TTL window")

		now = now.Add(5*time.Minute + time.Second)
		assert.True(t, th.TryAcquire(user), "after the TTL window")
	})

	t.Run("users are throttled independently", func(t *testing.T) {
		th := NewThrottle(5*time.Minute, clock)
		require.True(t, th.TryAcquire(user))
		assert.True(t, th.TryAcquire(other))
	})
}
