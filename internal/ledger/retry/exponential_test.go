package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"staysync/internal/ledger"
)

func TestExponentialBackoffStrategy_Success(t *testing.T) {
	strategy := NewExponentialBackoffStrategy(3, 10*time.Millisecond, 100*time.Millisecond)

	err := strategy.Execute(context.Background(), func() error {
		return nil // Success on first try
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestExponentialBackoffStrategy_SuccessAfterRetries(t *testing.T) {
	strategy := NewExponentialBackoffStrategy(5, 10*time.Millisecond, 100*time.Millisecond)

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer") // Recoverable error
		}
		return nil // Success on 3rd attempt
	})

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}

	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestExponentialBackoffStrategy_TransientErrorIsRetried(t *testing.T) {
	strategy := NewExponentialBackoffStrategy(3, time.Millisecond, 10*time.Millisecond)

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return &ledger.TransientError{Op: "query_events", Err: fmt.Errorf("rpc unavailable")}
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error after retry, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got: %d", attempts)
	}
}

func TestExponentialBackoffStrategy_NonRecoverableError(t *testing.T) {
	strategy := NewExponentialBackoffStrategy(5, 10*time.Millisecond, 100*time.Millisecond)

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		return errors.New("invalid data") // Non-recoverable error
	})

	if err == nil {
		t.Error("Expected error for non-recoverable failure")
	}

	if attempts != 1 {
		t.Errorf("Expected only 1 attempt for non-recoverable error, got: %d", attempts)
	}
}

func TestExponentialBackoffStrategy_ExhaustsRetries(t *testing.T) {
	strategy := NewExponentialBackoffStrategy(2, time.Millisecond, 5*time.Millisecond)

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		return &ledger.TransientError{Op: "query_events", Err: fmt.Errorf("still down")}
	})

	if err == nil {
		t.Error("Expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts (1 initial + 2 retries), got: %d", attempts)
	}
}

func TestExponentialBackoffStrategy_ContextCancellation(t *testing.T) {
	strategy := NewExponentialBackoffStrategy(5, 50*time.Millisecond, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := strategy.Execute(ctx, func() error {
		return errors.New("timeout")
	})

	if err == nil {
		t.Error("Expected error after context cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in error chain, got: %v", err)
	}
}

func TestNoRetryStrategy_SingleAttempt(t *testing.T) {
	strategy := NewNoRetryStrategy()

	attempts := 0
	err := strategy.Execute(context.Background(), func() error {
		attempts++
		return &ledger.TransientError{Op: "query_events", Err: fmt.Errorf("down")}
	})

	if err == nil {
		t.Error("Expected the failure to propagate")
	}
	if attempts != 1 {
		t.Errorf("Expected exactly 1 attempt, got: %d", attempts)
	}
}

func TestNewStrategy(t *testing.T) {
	if s := NewStrategy(Config{Enabled: false}); s.Name() != "NoRetry" {
		t.Errorf("Expected NoRetry strategy when disabled, got %s", s.Name())
	}
	if s := NewStrategy(Config{Enabled: true, MaxRetries: 3}); s.Name() != "ExponentialBackoff" {
		t.Errorf("Expected ExponentialBackoff strategy when enabled, got %s", s.Name())
	}
}
