package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowmind/internal/domain"
)

// RateLimiter is a token bucket shared by every model call of the process.
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastTime time.Time
}

// NewRateLimiter starts full. Non-positive values select 10 burst and 30/min.
func NewRateLimiter(maxBurst int, ratePerMinute float64) *RateLimiter {
	if maxBurst <= 0 {
		maxBurst = 10
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 30 // 30 requests per minute default
	}
	return &RateLimiter{
		tokens:   float64(maxBurst),
		max:      float64(maxBurst),
		rate:     ratePerMinute / 60.0, // Convert to per-second
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(rl.lastTime).Seconds()
		rl.tokens += elapsed * rl.rate
		if rl.tokens > rl.max {
			rl.tokens = rl.max
		}
		rl.lastTime = now

		if rl.tokens >= 1.0 {
			rl.tokens -= 1.0
			rl.mu.Unlock()
			return nil
		}

		waitSec := (1.0 - rl.tokens) / rl.rate
		rl.mu.Unlock()

		timer := time.NewTimer(time.Duration(waitSec * float64(time.Second)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// throttled delays each completion until the limiter grants a token.
type throttled struct {
	next    domain.Completer
	limiter *RateLimiter
}

// Throttle wraps c so that all its calls share limiter.
func Throttle(c domain.Completer, limiter *RateLimiter) domain.Completer {
	if c == nil || limiter == nil {
		return c
	}
	return &throttled{next: c, limiter: limiter}
}

func (t *throttled) Complete(ctx context.Context, messages []domain.Message, systemPrompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return t.next.Complete(ctx, messages, systemPrompt)
}
