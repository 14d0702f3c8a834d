package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/jobenrich/internal/ai"
)

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	limiter := NewKeyedLimiter(100 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	// Allow 20ms for timer jitter.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	limiter := NewKeyedLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("openai wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "local"); err != nil {
		t.Fatalf("local wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected near-instant wait for another key, got %v", elapsed)
	}
}

func TestWait_ConcurrentCallersQueue(t *testing.T) {
	limiter := NewKeyedLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Wait(ctx, "openai"); err != nil {
				t.Errorf("wait: %v", err)
			}
		}()
	}
	wg.Wait()

	// Four callers need three gaps.
	if elapsed := time.Since(start); elapsed < 130*time.Millisecond {
		t.Errorf("expected callers to queue (>= 130ms), got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewKeyedLimiter(5 * time.Second)

	if err := limiter.Wait(context.Background(), "openai"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "openai"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestDefer_HoldsOnlyThatKey(t *testing.T) {
	limiter := NewKeyedLimiter(time.Millisecond)
	limiter.Defer("openai", 150*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := limiter.Wait(ctx, "local"); err != nil {
		t.Fatalf("local wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("other key should not be held, waited %v", elapsed)
	}

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Fatalf("openai wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Errorf("deferred key released after %v, want >= 120ms", elapsed)
	}
}

func TestDefer_CancelledWhileHeld(t *testing.T) {
	limiter := NewKeyedLimiter(time.Millisecond)
	limiter.Defer("openai", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "openai"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

// --- Mock for RateLimitedProvider tests ---

type recordingProvider struct {
	calls int
	err   error
}

func (p *recordingProvider) Complete(_ context.Context, _ string) (string, error) {
	p.calls++
	return "{}", p.err
}

func TestRateLimitedProvider_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewKeyedLimiter(100 * time.Millisecond)
	inner := &recordingProvider{}
	provider := NewRateLimitedProvider(inner, limiter, "openai")
	ctx := context.Background()

	if _, err := provider.Complete(ctx, "a"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	start := time.Now()
	if _, err := provider.Complete(ctx, "b"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second call, got %v", elapsed)
	}
}

func TestRateLimitedProvider_HonoursRetryAfter(t *testing.T) {
	limiter := NewKeyedLimiter(time.Millisecond)
	inner := &recordingProvider{err: &ai.StatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 150 * time.Millisecond}}
	provider := NewRateLimitedProvider(inner, limiter, "openai")
	ctx := context.Background()

	if _, err := provider.Complete(ctx, "a"); err == nil {
		t.Fatal("expected the 429 to be returned")
	}

	inner.err = nil
	start := time.Now()
	if _, err := provider.Complete(ctx, "b"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Errorf("expected Retry-After to delay the next call, waited %v", elapsed)
	}
}
