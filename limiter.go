package docsgate

import (
	"sync"
	"time"
)

// AttemptLimiter rate-limits login attempts per client IP over a sliding window.
type AttemptLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewAttemptLimiter creates an AttemptLimiter that allows max attempts per
// window. Call Stop to end its cleanup goroutine.
func NewAttemptLimiter(max int, window time.Duration) *AttemptLimiter {
	l := &AttemptLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *AttemptLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for ip := range l.attempts {
				l.prune(ip, now)
			}
			l.mu.Unlock()
		}
	}
}

// prune drops attempts older than the window. Callers hold l.mu.
func (l *AttemptLimiter) prune(ip string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	hits := l.attempts[ip]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, ip)
		return nil
	}
	l.attempts[ip] = kept
	return kept
}

// Allow records an attempt for ip and reports whether it is within the limit.
// Rejected attempts are not recorded.
func (l *AttemptLimiter) Allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.prune(ip, now)) >= l.max {
		return false
	}
	l.attempts[ip] = append(l.attempts[ip], now)
	return true
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *AttemptLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
