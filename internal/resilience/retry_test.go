package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), RateLimitPolicy(time.Millisecond), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" || calls != 1 {
		t.Errorf("expected ok after 1 call, got %q after %d", val, calls)
	}
}

func TestDoVal_RetriesRateLimitOnce(t *testing.T) {
	var calls int
	start := time.Now()
	val, err := DoVal(context.Background(), RateLimitPolicy(20*time.Millisecond), func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, RateLimited("p", errors.New("429"))
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 7 || calls != 2 {
		t.Errorf("expected 7 after 2 calls, got %d after %d", val, calls)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected the fixed delay before the retry")
	}
}

func TestDoVal_RateLimitRetriedExactlyOnce(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RateLimitPolicy(time.Millisecond), func(_ context.Context) (int, error) {
		calls++
		return 0, RateLimited("p", errors.New("429"))
	})
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDoVal_OtherErrorsNotRetried(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RateLimitPolicy(time.Millisecond), func(_ context.Context) (int, error) {
		calls++
		return 0, Unavailable("p", errors.New("down"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, RateLimitPolicy(time.Second), func(_ context.Context) error {
		calls++
		return RateLimited("p", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDo_OnRetryCalled(t *testing.T) {
	var retries []int
	p := RateLimitPolicy(time.Millisecond)
	p.OnRetry = func(attempt int, _ error) { retries = append(retries, attempt) }
	_ = Do(context.Background(), p, func(_ context.Context) error {
		return RateLimited("p", nil)
	})
	if len(retries) != 1 || retries[0] != 1 {
		t.Errorf("expected one retry callback, got %v", retries)
	}
}

func TestRateLimitPolicy_Defaults(t *testing.T) {
	p := RateLimitPolicy(0)
	if p.Delay != 2*time.Second || p.Retries != 1 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}
