package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     4.0,
	}
}

func TestDoVal_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	val, err := DoVal(context.Background(), fastConfig(), func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewTransientError(errors.New("rate limited"), 429)
		}
		return "profile", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "profile", val)
	assert.Equal(t, 3, attempts)
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	attempts := 0
	sleeps := 0
	cfg := fastConfig()
	cfg.OnRetry = func(int, error) { sleeps++ }

	_, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		attempts++
		return "", NewTransientError(errors.New("upstream unavailable"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	// Two sleeps between three attempts; none after the last.
	assert.Equal(t, 2, sleeps)
}

func TestDoVal_NonTransientFailsImmediately(t *testing.T) {
	attempts := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		attempts++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoVal_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	_, err := DoVal(ctx, fastConfig(), func(context.Context) (int, error) {
		attempts++
		cancel()
		return 0, NewTransientError(errors.New("reset"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_CustomShouldRetry(t *testing.T) {
	attempts := 0
	cfg := fastConfig()
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "parse failure" }

	err := Do(context.Background(), cfg, func(context.Context) error {
		attempts++
		return errors.New("parse failure")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestComputeBackoff_Ladder(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, Multiplier: 4.0})
	assert.Equal(t, time.Second, computeBackoff(0, cfg))
	assert.Equal(t, 4*time.Second, computeBackoff(1, cfg))
	assert.Equal(t, 16*time.Second, computeBackoff(2, cfg))
}

func TestComputeBackoff_Cap(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, Multiplier: 4.0, MaxBackoff: 10 * time.Second})
	assert.Equal(t, 10*time.Second, computeBackoff(2, cfg))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("invalid argument")))
	assert.True(t, IsTransient(NewTransientError(errors.New("overloaded"), 529)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 410, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
