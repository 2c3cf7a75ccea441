package scrapers

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between outbound requests to one
// source. state is per adapter instance on purpose: adapters for different
// sources must not share a throttle clock.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Wait sleeps for the remaining portion of the interval since the last
// request, if any, then records the new request time. it returns early with
// the context's error when the caller is cancelled mid-sleep.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	remaining := t.interval - time.Since(t.last)
	if remaining <= 0 {
		t.last = time.Now()
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	t.mu.Lock()
	t.last = time.Now()
	t.mu.Unlock()
	return nil
}
