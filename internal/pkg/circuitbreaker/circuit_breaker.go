package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"dupebot/internal/pkg/logger"
	"dupebot/internal/pkg/metrics"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

type State string

const (
	StateClosed   State = "closed"
	StateHalfOpen State = "half-open"
	StateOpen     State = "open"
)

// Gauge value exported for each state.
func (s State) gauge() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

// Fails calls fast once a dependency has failed failureThreshold times in a
// row, then lets a single probe through after resetTimeout.
type CircuitBreaker struct {
	mutex            sync.Mutex
	failureCount     int
	lastFailure      time.Time
	resetTimeout     time.Duration
	failureThreshold int
	serviceName      string
	state            State
	probing          bool
}

func NewCircuitBreaker(serviceName string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	cb := &CircuitBreaker{
		serviceName:      serviceName,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}

	metrics.CircuitBreakerState.WithLabelValues(serviceName).Set(StateClosed.gauge())

	return cb
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mutex.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) <= cb.resetTimeout {
			cb.mutex.Unlock()
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
		logger.Log.Info("Circuit half-open, allowing test request",
			zap.String("service", cb.serviceName))
	case StateHalfOpen:
		// One probe at a time.
		if cb.probing {
			cb.mutex.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}

	cb.mutex.Unlock()

	err := fn()

	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.probing = false

	if err != nil {
		cb.failureCount++
		cb.lastFailure = time.Now()

		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			if cb.state != StateOpen {
				logger.Log.Warn("Circuit opened due to failures",
					zap.String("service", cb.serviceName),
					zap.Int("failures", cb.failureCount),
					zap.Time("until", cb.lastFailure.Add(cb.resetTimeout)))
			}
			cb.setState(StateOpen)
		}

		return err
	}

	if cb.state == StateHalfOpen {
		logger.Log.Info("Circuit closed after successful test",
			zap.String("service", cb.serviceName))
	}
	cb.failureCount = 0
	cb.setState(StateClosed)

	return nil
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Caller holds the mutex.
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	metrics.CircuitBreakerState.WithLabelValues(cb.serviceName).Set(state.gauge())
}
