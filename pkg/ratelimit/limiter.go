package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window attempt counter keyed by an arbitrary string
// (here: client IP of feed requests).
type Limiter struct {
	attempts map[string][]time.Time
	mu       sync.Mutex
}

func NewLimiter() *Limiter {
	l := &Limiter{
		attempts: make(map[string][]time.Time),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) Allow(key string, maxAttempts int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	var recent []time.Time
	for _, ts := range l.attempts[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= maxAttempts {
		l.attempts[key] = recent
		return false
	}

	l.attempts[key] = append(recent, now)
	return true
}

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-time.Hour)
		for key, attempts := range l.attempts {
			var recent []time.Time
			for _, ts := range attempts {
				if ts.After(cutoff) {
					recent = append(recent, ts)
				}
			}
			if len(recent) == 0 {
				delete(l.attempts, key)
			} else {
				l.attempts[key] = recent
			}
		}
		l.mu.Unlock()
	}
}
