package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	var calls int
	err := Retry(context.Background(), fastPolicy(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_RetriesTransientUntilSuccess(t *testing.T) {
	var calls int
	err := Retry(context.Background(), fastPolicy(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return MarkTransient(errors.New("upstream 503"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("invalid product id")
	var calls int
	err := Retry(context.Background(), fastPolicy(), func(_ context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error retried: %d calls", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Retry(context.Background(), fastPolicy(), func(_ context.Context) error {
		calls++
		return MarkTransient(errors.New("timeout"), 0)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := Retry(ctx, fastPolicy(), func(_ context.Context) error {
		calls++
		cancel()
		return MarkTransient(errors.New("timeout"), 0)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancel, got %d", calls)
	}
}

func TestRetryVal_PreservesValue(t *testing.T) {
	var calls int
	val, err := RetryVal(context.Background(), fastPolicy(), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", MarkTransient(errors.New("flaky"), 500)
		}
		return "snapshot", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "snapshot" {
		t.Errorf("expected snapshot, got %q", val)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var attempts []int
	policy := fastPolicy()
	policy.OnRetry = func(attempt int, _ error) {
		attempts = append(attempts, attempt)
	}

	_ = Retry(context.Background(), policy, func(_ context.Context) error {
		return MarkTransient(errors.New("timeout"), 0)
	})

	if len(attempts) != 2 {
		t.Fatalf("expected 2 retry callbacks, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1 2], got %v", attempts)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	p := RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
	}.withDefaults()
	p.JitterFraction = 0

	if d := p.backoff(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0: expected 100ms, got %s", d)
	}
	if d := p.backoff(1); d != 200*time.Millisecond {
		t.Errorf("attempt 1: expected 200ms, got %s", d)
	}
	if d := p.backoff(5); d != 300*time.Millisecond {
		t.Errorf("attempt 5: expected cap 300ms, got %s", d)
	}
}
