package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/jobenrich/internal/ai"
)

// KeyedLimiter enforces a minimum delay between calls sharing the same key
// (one key per LLM endpoint). Each key gets its own token bucket of size one.
type KeyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	notBefore map[string]time.Time // set by Defer
	minDelay  time.Duration
}

// NewKeyedLimiter creates a limiter that spaces calls to the same key by minDelay.
func NewKeyedLimiter(minDelay time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limiters:  make(map[string]*rate.Limiter),
		notBefore: make(map[string]time.Time),
		minDelay:  minDelay,
	}
}

func (l *KeyedLimiter) get(key string) (*rate.Limiter, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.minDelay), 1)
		l.limiters[key] = lim
	}
	return lim, l.notBefore[key]
}

// Wait blocks until key may be called again. rate.Limiter reserves a slot per
// caller, so concurrent callers queue instead of bursting.
func (l *KeyedLimiter) Wait(ctx context.Context, key string) error {
	lim, notBefore := l.get(key)

	if d := time.Until(notBefore); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
		case <-t.C:
		}
	}

	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", key, err)
	}
	return nil
}

// Defer holds every call for key until at least d from now.
func (l *KeyedLimiter) Defer(key string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := time.Now().Add(d); until.After(l.notBefore[key]) {
		l.notBefore[key] = until
	}
}

// RateLimitedProvider is a decorator that paces calls to the wrapped
// LLMProvider and honours Retry-After on 429 responses.
type RateLimitedProvider struct {
	inner   ai.LLMProvider
	limiter *KeyedLimiter
	key     string
}

var _ ai.LLMProvider = (*RateLimitedProvider)(nil)

// NewRateLimitedProvider wraps an LLMProvider. Providers hitting the same
// endpoint should share the limiter and key.
func NewRateLimitedProvider(inner ai.LLMProvider, limiter *KeyedLimiter, key string) *RateLimitedProvider {
	return &RateLimitedProvider{
		inner:   inner,
		limiter: limiter,
		key:     key,
	}
}

func (p *RateLimitedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx, p.key); err != nil {
		return "", err
	}
	out, err := p.inner.Complete(ctx, prompt)

	var se *ai.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests && se.RetryAfter > 0 {
		p.limiter.Defer(p.key, se.RetryAfter)
	}
	return out, err
}
