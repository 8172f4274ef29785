package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(3, 5*time.Minute)

	require.True(t, limiter.Allow("10.0.0.1"))
	require.True(t, limiter.Allow("10.0.0.1"))
	require.True(t, limiter.Allow("10.0.0.1"))
	require.False(t, limiter.Allow("10.0.0.1"))

	// Other keys are unaffected.
	require.True(t, limiter.Allow("10.0.0.2"))
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter(1, 10*time.Millisecond)

	require.True(t, limiter.Allow("10.0.0.1"))
	require.False(t, limiter.Allow("10.0.0.1"))

	time.Sleep(20 * time.Millisecond)

	require.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiterRetryAfter(t *testing.T) {
	limiter := NewRateLimiter(1, 5*time.Minute)

	require.Zero(t, limiter.RetryAfter("10.0.0.1"))

	require.True(t, limiter.Allow("10.0.0.1"))
	require.Zero(t, limiter.RetryAfter("10.0.0.1"))

	require.False(t, limiter.Allow("10.0.0.1"))
	retryAfter := limiter.RetryAfter("10.0.0.1")
	require.Positive(t, retryAfter)
	require.LessOrEqual(t, retryAfter, 5*time.Minute)
}

func TestRateLimiterPrune(t *testing.T) {
	limiter := NewRateLimiter(1, 10*time.Millisecond)

	require.True(t, limiter.Allow("10.0.0.1"))
	require.True(t, limiter.Allow("10.0.0.2"))

	time.Sleep(20 * time.Millisecond)
	require.True(t, limiter.Allow("10.0.0.3"))

	require.Equal(t, 2, limiter.Prune())
}
