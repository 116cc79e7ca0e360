package server

import (
	"fmt"
	"sync"
	"time"
)

// Limits are per-client allowances. Zero disables a limit.
type Limits struct {
	PerMinute   int
	PerHour     int
	PerDay      int
	BytesPerDay int64
}

// RateLimiter tracks request counts and uploaded bytes per client in fixed
// windows that start at the client's first request of the window.
type RateLimiter struct {
	mu      sync.Mutex
	limits  Limits
	clients map[string]*clientUsage
	now     func() time.Time
}

type window struct {
	start time.Time
	count int64
}

// roll resets the window when length has elapsed since it started.
func (w *window) roll(now time.Time, length time.Duration) {
	if w.start.IsZero() || now.Sub(w.start) >= length {
		w.start = now
		w.count = 0
	}
}

func (w *window) retryAfter(now time.Time, length time.Duration) time.Duration {
	return w.start.Add(length).Sub(now)
}

type clientUsage struct {
	minute window
	hour   window
	day    window // request count
	data   window // bytes
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	BytesToday         int64
}

// NewRateLimiter creates a limiter enforcing limits.
func NewRateLimiter(limits Limits) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		clients: make(map[string]*clientUsage),
		now:     time.Now,
	}
}

// Allow records a request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{}
		rl.clients[client] = u
	}
	u.minute.roll(now, time.Minute)
	u.hour.roll(now, time.Hour)
	u.day.roll(now, 24*time.Hour)
	u.data.roll(now, 24*time.Hour)

	if l := rl.limits.PerMinute; l > 0 && u.minute.count >= int64(l) {
		return &RateLimitError{Type: "minute", Limit: l, RetryAfter: u.minute.retryAfter(now, time.Minute)}
	}
	if l := rl.limits.PerHour; l > 0 && u.hour.count >= int64(l) {
		return &RateLimitError{Type: "hour", Limit: l, RetryAfter: u.hour.retryAfter(now, time.Hour)}
	}
	if l := rl.limits.PerDay; l > 0 && u.day.count >= int64(l) {
		return &QuotaExceededError{Type: "requests", Limit: int64(l), Used: u.day.count, Resets: u.day.start.Add(24 * time.Hour)}
	}
	if l := rl.limits.BytesPerDay; l > 0 && u.data.count+size > l {
		return &QuotaExceededError{Type: "data", Limit: l, Used: u.data.count, Resets: u.data.start.Add(24 * time.Hour)}
	}

	u.minute.count++
	u.hour.count++
	u.day.count++
	u.data.count += size
	return nil
}

// Usage returns the current counters of client.
func (rl *RateLimiter) Usage(client string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[client]
	if !ok {
		return Usage{}
	}
	return Usage{
		RequestsLastMinute: int(u.minute.count),
		RequestsLastHour:   int(u.hour.count),
		RequestsToday:      int(u.day.count),
		BytesToday:         u.data.count,
	}
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a daily quota violation.
type QuotaExceededError struct {
	Type   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
