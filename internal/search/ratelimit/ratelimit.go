package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements token bucket rate limiting per key. Each key may
// burst up to the full allowance and refills evenly across the window.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a Limiter allowing requests per window for every key.
// A non-positive requests value blocks all traffic.
func New(requests int, window time.Duration) *Limiter {
	l := &Limiter{
		visitors: make(map[string]*visitor),
		window:   window,
		done:     make(chan struct{}),
	}
	if requests > 0 && window > 0 {
		l.limit = rate.Every(window / time.Duration(requests))
		l.burst = requests
	}

	// Start background cleanup
	go l.cleanup()

	return l
}

// Close stops the background cleanup goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

// Allow checks if a request for the given key is allowed.
func (l *Limiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *Limiter) allowAt(key string, now time.Time) bool {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// cleanup periodically removes stale visitors.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			l.evict(now)
		case <-l.done:
			return
		}
	}
}

// evict drops visitors inactive for 2x window; their bucket is full again
// by then.
func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > 2*l.window {
			delete(l.visitors, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
