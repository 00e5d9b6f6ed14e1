package auth

import (
	"context"
	"sync"
	"time"

	"github.com/tartampluch/rappel-anniv/internal/engine"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles login attempts per client key (usually the IP).
type LoginLimiter struct {
	mu       sync.Mutex
	clock    engine.Clock
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

// NewLoginLimiter allows perMinute attempts per key with bursts of burst.
func NewLoginLimiter(clock engine.Clock, perMinute, burst int) *LoginLimiter {
	return &LoginLimiter{
		clock:    clock,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
}

// Allow consumes one attempt for key and reports whether it may proceed.
func (l *LoginLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RetryAfter estimates how long key must wait for its next attempt.
func (l *LoginLimiter) RetryAfter(key string) time.Duration {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		return 0
	}
	r := v.limiter.ReserveN(now, 1)
	defer r.CancelAt(now)
	return r.DelayFrom(now)
}

// Sweep forgets keys idle for longer than idle.
func (l *LoginLimiter) Sweep(idle time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(l.visitors, key)
		}
	}
}

// Run sweeps idle keys every interval until ctx is done.
func (l *LoginLimiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep(idle)
		case <-ctx.Done():
			return
		}
	}
}

// Len reports how many keys are tracked.
func (l *LoginLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
