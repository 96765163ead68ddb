package ratelimit

import (
	"testing"
	"time"
)

// drain spends every token available to key at now and returns how many
// requests passed.
func drain(l *Limiter, key string, now time.Time) int {
	passed := 0
	for range 1000 {
		if !l.allowAt(key, now) {
			break
		}
		passed++
	}
	return passed
}

func TestLimiter_BurstIsAllowance(t *testing.T) {
	tests := []struct {
		name     string
		requests int
		window   time.Duration
	}{
		{"one per minute", 1, time.Minute},
		{"thirty per minute", 30, time.Minute},
		{"five per second", 5, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.requests, tt.window)
			defer l.Close()

			if got := drain(l, "ip", time.Now()); got != tt.requests {
				t.Errorf("burst passed %d requests, want %d", got, tt.requests)
			}
		})
	}
}

func TestLimiter_EvenRefill(t *testing.T) {
	// One token every 15s.
	l := New(4, time.Minute)
	defer l.Close()

	base := time.Now()
	if got := drain(l, "ip", base); got != 4 {
		t.Fatalf("initial burst = %d, want 4", got)
	}

	tests := []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"before one interval", 10 * time.Second, 0},
		{"after one interval", 16 * time.Second, 1},
		{"after two more intervals", 47 * time.Second, 2},
		{"after a full idle window", 47*time.Second + 2*time.Minute, 4},
	}

	for _, tt := range tests {
		if got := drain(l, "ip", base.Add(tt.offset)); got != tt.want {
			t.Errorf("%s: passed %d requests, want %d", tt.name, got, tt.want)
		}
	}
}

func TestLimiter_NonPositiveBlocksAll(t *testing.T) {
	tests := []struct {
		name     string
		requests int
		window   time.Duration
	}{
		{"zero requests", 0, time.Minute},
		{"negative requests", -5, time.Minute},
		{"zero window", 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.requests, tt.window)
			defer l.Close()

			now := time.Now()
			for _, at := range []time.Time{now, now.Add(time.Hour), now.Add(24 * time.Hour)} {
				if l.allowAt("ip", at) {
					t.Fatalf("request at +%v allowed, want every request blocked", at.Sub(now))
				}
			}
		})
	}
}

func TestLimiter_Evict(t *testing.T) {
	l := New(5, time.Minute)
	defer l.Close()

	now := time.Now()
	l.allowAt("stale", now.Add(-3*time.Minute))
	l.allowAt("recent", now.Add(-time.Minute))
	l.allowAt("fresh", now)

	l.evict(now)

	if got := l.size(); got != 2 {
		t.Fatalf("size() = %d, want 2", got)
	}
	l.mu.Lock()
	_, stale := l.visitors["stale"]
	l.mu.Unlock()
	if stale {
		t.Error("visitor idle for over two windows was kept")
	}
}
