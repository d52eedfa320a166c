package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func fail() error { return errBackend }
func succeed() error { return nil }

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test-open", 3, time.Minute)

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(fail), errBackend)
		assert.Equal(t, StateClosed, cb.State())
	}
	require.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not call through")
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("test-reset-count", 2, time.Minute)

	require.Error(t, cb.Execute(fail))
	require.NoError(t, cb.Execute(succeed))
	require.Error(t, cb.Execute(fail))
	assert.Equal(t, StateClosed, cb.State(), "failures are counted consecutively")
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker("test-probe", 1, 20*time.Millisecond)

	require.Error(t, cb.Execute(fail))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("test-reopen", 1, 20*time.Millisecond)

	require.Error(t, cb.Execute(fail))
	time.Sleep(40 * time.Millisecond)

	require.ErrorIs(t, cb.Execute(fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(succeed), ErrCircuitOpen)
}
