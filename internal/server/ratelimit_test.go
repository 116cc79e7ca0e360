package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a limiter whose clock is advanced by the returned func.
func fakeClock(rl *RateLimiter) func(time.Duration) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl := NewRateLimiter(Limits{})
	for range 100 {
		require.NoError(t, rl.Allow("user1", 100))
	}
	u := rl.Usage("user1")
	assert.Equal(t, 100, u.RequestsToday)
	assert.Equal(t, int64(10000), u.BytesToday)
	assert.Equal(t, Usage{}, rl.Usage("nobody"))
}

func TestRateLimiter_PerMinuteWindowResets(t *testing.T) {
	rl := NewRateLimiter(Limits{PerMinute: 2})
	advance := fakeClock(rl)

	require.NoError(t, rl.Allow("u", 0))
	advance(10 * time.Second)
	require.NoError(t, rl.Allow("u", 0))

	err := rl.Allow("u", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 50*time.Second, rle.RetryAfter)

	// steady traffic does not keep the window open
	advance(50 * time.Second)
	require.NoError(t, rl.Allow("u", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl := NewRateLimiter(Limits{PerHour: 3})
	advance := fakeClock(rl)

	for range 3 {
		require.NoError(t, rl.Allow("u", 0))
		advance(2 * time.Minute)
	}
	var rle *RateLimitError
	require.ErrorAs(t, rl.Allow("u", 0), &rle)
	assert.Equal(t, "hour", rle.Type)

	advance(time.Hour)
	assert.NoError(t, rl.Allow("u", 0))
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl := NewRateLimiter(Limits{PerDay: 2, BytesPerDay: 1000})
	advance := fakeClock(rl)

	require.NoError(t, rl.Allow("u", 400))
	var qe *QuotaExceededError
	require.ErrorAs(t, rl.Allow("u", 700), &qe)
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(400), qe.Used)

	require.NoError(t, rl.Allow("u", 100))
	require.ErrorAs(t, rl.Allow("u", 0), &qe)
	assert.Equal(t, "requests", qe.Type)
	assert.Contains(t, qe.Error(), "quota exceeded for requests")

	advance(24 * time.Hour)
	assert.NoError(t, rl.Allow("u", 900))
}

func TestRateLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	rl := NewRateLimiter(Limits{PerMinute: 1})
	fakeClock(rl)

	require.NoError(t, rl.Allow("u", 0))
	require.Error(t, rl.Allow("u", 0))
	require.Error(t, rl.Allow("u", 0))
	assert.Equal(t, 1, rl.Usage("u").RequestsLastMinute)
}
