// Package resilience protects calls to the catalog API: a circuit breaker
// for sustained upstream failure, bounded retry with backoff for transient
// errors, and the transient/permanent classification both rely on.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the circuit's current mode.
type BreakerState int

const (
	// BreakerClosed is normal operation, calls flow through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls immediately after sustained failure.
	BreakerOpen
	// BreakerHalfOpen lets a probe call through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected without reaching the
// upstream because the breaker is open.
var ErrBreakerOpen = eris.New("resilience: circuit breaker open")

// BreakerSettings tunes a Breaker.
type BreakerSettings struct {
	// FailureThreshold is how many consecutive failures open the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before allowing a probe.
	Cooldown time.Duration

	// ShouldTrip decides whether an error counts toward the threshold.
	// Nil counts every error.
	ShouldTrip func(err error) bool

	// OnStateChange observes transitions, for logging.
	OnStateChange func(from, to BreakerState)
}

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// Breaker is a circuit breaker guarding one upstream service.
type Breaker struct {
	settings BreakerSettings

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	nowFunc func() time.Time
}

// NewBreaker builds a Breaker, filling unset settings with defaults.
func NewBreaker(settings BreakerSettings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = defaultFailureThreshold
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = defaultCooldown
	}
	return &Breaker{
		settings: settings,
		state:    BreakerClosed,
		nowFunc:  time.Now,
	}
}

// Execute runs fn through the breaker. An open breaker returns
// ErrBreakerOpen without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// Guard is Execute for calls that return a value.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State reports the breaker's effective state, accounting for an elapsed
// cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.openedAt) >= b.settings.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(BreakerClosed)
	b.failures = 0
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.nowFunc().Sub(b.openedAt) >= b.settings.Cooldown {
			b.transition(BreakerHalfOpen)
			return nil // probe
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trips := err != nil
	if b.settings.ShouldTrip != nil {
		trips = err != nil && b.settings.ShouldTrip(err)
	}

	if !trips {
		b.failures = 0
		if b.state == BreakerHalfOpen {
			b.transition(BreakerClosed)
		}
		return
	}

	b.failures++
	b.openedAt = b.nowFunc()
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.settings.FailureThreshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		// A failed probe reopens immediately.
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(from, to)
	}
}

// BreakerFromConfig maps application config knobs onto BreakerSettings.
func BreakerFromConfig(failureThreshold, cooldownSecs int) BreakerSettings {
	s := BreakerSettings{}
	if failureThreshold > 0 {
		s.FailureThreshold = failureThreshold
	}
	if cooldownSecs > 0 {
		s.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return s
}
