// Package ratelimit provides a client-side token-bucket rate limiter — the
// rateLimiter capability a caller may pass to DownloadFile/UploadFile to cap
// the engine's request rate independent of the server's own trafficLimit
// header enforcement.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a token bucket: tokens accrue at refillRate per second
// up to maxTokens, and each Wait call consumes one token, blocking until one
// is available or ctx is cancelled.
//
// Thread-safe: all mutable state is behind mu, so a single Limiter can be
// shared across every worker goroutine in a transfer.
type Limiter struct {
	mu sync.Mutex

	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time

	cooldownEnd time.Time
}

// New creates a Limiter with the given sustained rate (tokens/second) and
// burst capacity (bucket depth).
func New(tokensPerSecond, burstSize float64) *Limiter {
	return &Limiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if cooldown := l.cooldownRemaining(); cooldown > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cooldown):
		}
	}

	for {
		if l.tryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.timeUntilNextToken()):
		}
	}
}

func (l *Limiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.lastRefill).Seconds() * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

func (l *Limiter) timeUntilNextToken() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	needed := 1.0 - l.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / l.refillRate * float64(time.Second))
}

// Drain empties the bucket immediately, so that a caller reacting to a
// server 429 can stop further part requests until the cooldown (set
// separately via SetCooldown) expires. The transfer engine itself calls
// neither Drain nor SetCooldown.
func (l *Limiter) Drain() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = 0
	l.lastRefill = time.Now()
}

// SetCooldown sets a cooldown period during which Wait blocks regardless of
// token availability. Merge semantics: a shorter cooldown can never shorten
// one already in effect (a later, smaller Retry-After cannot override an
// earlier, larger one the server already committed to honoring).
func (l *Limiter) SetCooldown(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	end := time.Now().Add(d)
	if end.After(l.cooldownEnd) {
		l.cooldownEnd = end
	}
}

func (l *Limiter) cooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cooldownEnd.IsZero() {
		return 0
	}
	remaining := time.Until(l.cooldownEnd)
	if remaining < 0 {
		return 0
	}
	return remaining
}
