package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntil_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Until(context.Background(), "op", 10*time.Millisecond, time.Second, func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got: %d", attempts)
	}
}

func TestUntil_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Until(context.Background(), "op", 5*time.Millisecond, time.Second, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Errorf("expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got: %d", attempts)
	}
}

func TestUntil_Timeout(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("still failing")
	err := Until(context.Background(), "wait for address", 5*time.Millisecond, 30*time.Millisecond, func() error {
		return sentinel
	})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !IsTimeout(err) {
		t.Errorf("expected TimeoutError, got: %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected last error to be wrapped, got: %v", err)
	}
}

func TestUntil_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Until(ctx, "op", 5*time.Millisecond, 10*time.Second, func() error {
		attempts++
		return errors.New("never")
	})
	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if IsTimeout(err) {
		t.Error("cancellation must not be reported as a timeout")
	}
}

func TestUntilValue_ReturnsValue(t *testing.T) {
	t.Parallel()
	attempts := 0
	ip, err := UntilValue(context.Background(), "op", 5*time.Millisecond, time.Second, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("no entry")
		}
		return "172.20.3.45", nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ip != "172.20.3.45" {
		t.Errorf("expected resolved value, got: %q", ip)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
