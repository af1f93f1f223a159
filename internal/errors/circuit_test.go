package errors

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("remote",
		WithMaxFailures(maxFailures),
		WithResetTimeout(30*time.Second),
		withClock(clock.Now),
	)
	return cb, clock
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 3 failures
	cb, _ := newTestBreaker(3)

	// When: three calls fail
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("connection refused") })
	}

	// Then: the circuit is open and calls are rejected without running
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb, clock := newTestBreaker(2)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("x") })
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(31 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(5)
	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return errors.New("x") })
	}
	clock.Advance(31 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	_ = cb.Execute(func() error { return errors.New("still down") })

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(5)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("x") })
	}
	require.Equal(t, 3, cb.Failures())

	require.NoError(t, cb.Execute(func() error { return nil }))

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitExecute_ReturnsValue(t *testing.T) {
	cb, _ := newTestBreaker(1)

	v, err := CircuitExecute(cb, func() (string, error) { return "abc", nil })
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = CircuitExecute(cb, func() (string, error) { return "", errors.New("x") })
	require.Error(t, err)

	v, err = CircuitExecute(cb, func() (string, error) { return "never", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Empty(t, v)
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb, _ := newTestBreaker(1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(func() error {
				if i%2 == 0 {
					return errors.New("x")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("remote", WithMaxFailures(0))

	assert.Equal(t, "remote", cb.Name())
	assert.Equal(t, 10, cb.maxFailures)
	assert.Equal(t, 30*time.Second, cb.resetTimeout)
	assert.Equal(t, "closed", cb.State().String())
	assert.Equal(t, "unknown", State(9).String())
}
