package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sells-group/fieldsnap/internal/config"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("p", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("call %d rejected early: %v", i, err)
		}
		cb.Record(Unavailable("p", errors.New("down")))
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_RateLimitDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("p", CircuitBreakerConfig{FailureThreshold: 1})
	cb.Record(RateLimited("p", nil))
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("p", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	cb.nowFunc = func() time.Time { return now }

	cb.Record(Timeout("p", nil))
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	now = now.Add(2 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected trial call to be allowed: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	cb.Record(nil)
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful trial call, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("p", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Second})
	cb.nowFunc = func() time.Time { return now }

	cb.Record(Unavailable("p", nil))
	cb.Record(Unavailable("p", nil))
	now = now.Add(2 * time.Second)
	_ = cb.Allow()
	cb.Record(Unavailable("p", nil))
	if cb.State() != CircuitOpen {
		t.Errorf("expected reopen, got %s", cb.State())
	}
}

func TestProviderBreakers_GetIsStable(t *testing.T) {
	pb := NewProviderBreakers(FromCircuitConfig(config.CircuitConfig{FailureThreshold: 2, ResetTimeoutSecs: 5}))
	a := pb.Get("tesseract")
	if a != pb.Get("tesseract") {
		t.Error("expected same breaker for same provider")
	}
	if a == pb.Get("cloud_vision") {
		t.Error("expected distinct breakers per provider")
	}
	if a.cfg.FailureThreshold != 2 || a.cfg.ResetTimeout != 5*time.Second {
		t.Errorf("unexpected config %+v", a.cfg)
	}
	if len(pb.States()) != 2 {
		t.Errorf("expected 2 states, got %d", len(pb.States()))
	}
}
