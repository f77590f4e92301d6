package docsgate

import (
	"testing"
	"time"
)

func TestAttemptLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewAttemptLimiter(2, 200*time.Millisecond)
	defer limiter.Stop()
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestAttemptLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewAttemptLimiter(1, 150*time.Millisecond)
	defer limiter.Stop()
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be blocked")
	}

	time.Sleep(200 * time.Millisecond)
	if !limiter.Allow(ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestAttemptLimiterIsPerIP(t *testing.T) {
	limiter := NewAttemptLimiter(1, 200*time.Millisecond)
	defer limiter.Stop()

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestAttemptLimiterStopIsIdempotent(t *testing.T) {
	limiter := NewAttemptLimiter(1, time.Millisecond)
	limiter.Stop()
	limiter.Stop()
	if !limiter.Allow("203.0.113.40") {
		t.Fatalf("Allow should keep working after Stop")
	}
}
