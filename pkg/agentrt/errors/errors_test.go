package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Operation: "request quote:get", Duration: 5 * time.Second}
	assert.Contains(t, err.Error(), "timeout after 5s")
	assert.Contains(t, err.Error(), "quote:get")
}

func TestLifecycleErrorUnwrap(t *testing.T) {
	inner := stderrors.New("db unreachable")
	err := &LifecycleError{AgentID: "pricer", Op: "start", Err: inner}

	assert.Contains(t, err.Error(), "pricer")
	assert.Contains(t, err.Error(), "start")
	assert.ErrorIs(t, err, inner)
}

func TestRegistrationErrorUnwrap(t *testing.T) {
	inner := stderrors.New("duplicate")
	err := &RegistrationError{AgentID: "pricer", Message: "register", Err: inner}
	assert.ErrorIs(t, err, inner)

	bare := &RegistrationError{AgentID: "pricer", Message: "register"}
	assert.Equal(t, "agent pricer: register", bare.Error())
}

func TestPanicError(t *testing.T) {
	err := &PanicError{Origin: "handler sub-1", Value: "nil map write", Stack: "stack"}
	assert.Contains(t, err.Error(), "handler sub-1 panicked")
	assert.Contains(t, err.Error(), "nil map write")
}

func TestBackoffGrowth(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}

	assert.Equal(t, time.Second, cfg.Backoff(1))
	assert.Equal(t, 2*time.Second, cfg.Backoff(2))
	assert.Equal(t, 4*time.Second, cfg.Backoff(3))
	assert.Equal(t, 8*time.Second, cfg.Backoff(4))
	// Capped by MaxBackoff.
	assert.Equal(t, 10*time.Second, cfg.Backoff(5))
	assert.Equal(t, 10*time.Second, cfg.Backoff(50))
}

func TestBackoffClampsAttempt(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, BackoffFactor: 2.0}
	assert.Equal(t, cfg.Backoff(1), cfg.Backoff(0))
	assert.Equal(t, cfg.Backoff(1), cfg.Backoff(-3))
}

func TestBackoffJitterBounds(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
	}

	for i := 0; i < 100; i++ {
		d := cfg.Backoff(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestDefaultRetry(t *testing.T) {
	assert.Equal(t, 3, DefaultRetry.MaxAttempts)
	assert.Equal(t, 1, NoRetry.MaxAttempts)
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  1.0,
	}

	calls := 0
	result, err := WithRetry(context.Background(), cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", stderrors.New("transient")
		}
		return "done", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  1.0,
	}

	permanent := stderrors.New("permanent")
	calls := 0
	_, err := WithRetry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 2, calls)
}

func TestWithRetryRespectsContext(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    10,
		InitialBackoff: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, cfg, func() (int, error) {
		return 0, stderrors.New("always fails")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRetryNoRetry(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), NoRetry, func() (int, error) {
		calls++
		return 0, stderrors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
