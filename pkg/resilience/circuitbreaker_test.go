package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func succeeding() error { return nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Call(failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %s, want open", got)
	}
	if err := b.Call(succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute, HalfOpenMax: 1})
	clock := time.Now()
	b.now = func() time.Time { return clock }

	b.Call(failing)
	if b.State() != StateOpen {
		t.Fatal("expected open")
	}

	clock = clock.Add(2 * time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatal("expected half-open after timeout")
	}

	// Successful probe closes the breaker.
	if err := b.Call(succeeding); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatal("expected closed after successful probe")
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: time.Minute})
	clock := time.Now()
	b.now = func() time.Time { return clock }

	b.Call(failing)
	clock = clock.Add(2 * time.Minute)
	if b.State() != StateHalfOpen {
		t.Fatal("expected half-open")
	}
	b.Call(failing)
	if b.State() != StateOpen {
		t.Fatal("expected re-open after failed probe")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	b.Call(failing)
	b.Call(succeeding)
	b.Call(failing)
	if b.State() != StateClosed {
		t.Fatal("non-consecutive failures should not trip")
	}
}

func TestStateString(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" || StateHalfOpen.String() != "half-open" {
		t.Fatal("state names")
	}
	if State(99).String() != "unknown" {
		t.Fatal("unknown state")
	}
}
