package scrapers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleSpacesRequests(t *testing.T) {
	throttle := NewThrottle(time.Millisecond * 50)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, throttle.Wait(ctx))
	require.NoError(t, throttle.Wait(ctx))
	require.NoError(t, throttle.Wait(ctx))

	// first call is free, the next two wait out the interval
	require.GreaterOrEqual(t, time.Since(start), time.Millisecond*100)
}

func TestThrottleFirstCallImmediate(t *testing.T) {
	throttle := NewThrottle(time.Hour)

	start := time.Now()
	require.NoError(t, throttle.Wait(context.Background()))
	require.Less(t, time.Since(start), time.Second)
}

func TestThrottleCancellation(t *testing.T) {
	throttle := NewThrottle(time.Hour)
	require.NoError(t, throttle.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*10)
	defer cancel()

	err := throttle.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThrottleIndependentInstances(t *testing.T) {
	a := NewThrottle(time.Hour)
	b := NewThrottle(time.Hour)
	require.NoError(t, a.Wait(context.Background()))

	// a is saturated, b's clock is untouched
	start := time.Now()
	require.NoError(t, b.Wait(context.Background()))
	require.Less(t, time.Since(start), time.Second)
}
