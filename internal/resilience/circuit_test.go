package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker(BreakerSettings{})

	var calls int
	err := b.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerSettings{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("fail")
		})
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}

	err := b.Execute(context.Background(), func(_ context.Context) error {
		t.Error("open breaker must not invoke fn")
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerSettings{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("fail")
		})
	}
	_ = b.Execute(context.Background(), func(_ context.Context) error { return nil })

	// Two more failures stay below the threshold again.
	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), func(_ context.Context) error {
			return errors.New("fail")
		})
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	b := NewBreaker(BreakerSettings{FailureThreshold: 1, Cooldown: time.Minute})
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return errors.New("fail")
	})
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	// After the cooldown a probe is admitted; success closes the breaker.
	now = now.Add(2 * time.Minute)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", b.State())
	}
	err := b.Execute(context.Background(), func(_ context.Context) error { return nil })
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := NewBreaker(BreakerSettings{FailureThreshold: 1, Cooldown: time.Minute})
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return errors.New("fail")
	})
	now = now.Add(2 * time.Minute)

	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return errors.New("still down")
	})
	if b.State() != BreakerOpen {
		t.Errorf("expected reopened, got %s", b.State())
	}
}

func TestBreaker_ShouldTripFilter(t *testing.T) {
	b := NewBreaker(BreakerSettings{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		ShouldTrip:       IsTransient,
	})

	// A permanent error does not trip the breaker.
	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return errors.New("bad request")
	})
	if b.State() != BreakerClosed {
		t.Errorf("permanent error tripped the breaker")
	}

	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return MarkTransient(errors.New("upstream 503"), 503)
	})
	if b.State() != BreakerOpen {
		t.Errorf("transient error did not trip the breaker")
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	b := NewBreaker(BreakerSettings{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		OnStateChange: func(from, to BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return errors.New("fail")
	})
	b.Reset()

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestGuard_PreservesValue(t *testing.T) {
	b := NewBreaker(BreakerSettings{})

	val, err := Guard(context.Background(), b, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestBreakerFromConfig(t *testing.T) {
	s := BreakerFromConfig(7, 90)
	if s.FailureThreshold != 7 {
		t.Errorf("expected threshold 7, got %d", s.FailureThreshold)
	}
	if s.Cooldown != 90*time.Second {
		t.Errorf("expected cooldown 90s, got %s", s.Cooldown)
	}

	// Zero values defer to NewBreaker defaults.
	b := NewBreaker(BreakerFromConfig(0, 0))
	if b.settings.FailureThreshold != defaultFailureThreshold {
		t.Errorf("expected default threshold, got %d", b.settings.FailureThreshold)
	}
}
