package services

import (
	"testing"
	"time"

	"deckparty/config"
)

var probeLimit = config.Limit{
	Window:      5 * time.Minute,
	MaxAttempts: 10,
	Lockout:     30 * time.Minute,
}

func TestRateLimitLockoutAfterMaxAttempts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &rateLimitRecord{}

	for i := 0; i < 9; i++ {
		allowed, _ := rec.apply(now.Add(time.Duration(i)*time.Second), probeLimit)
		if !allowed {
			t.Fatalf("attempt %d denied inside the limit", i+1)
		}
	}

	allowed, retryAfter := rec.apply(now.Add(10*time.Second), probeLimit)
	if allowed {
		t.Fatalf("attempt 10 allowed, want lockout")
	}
	if retryAfter != probeLimit.Lockout {
		t.Fatalf("retry-after = %v, want the full lockout %v", retryAfter, probeLimit.Lockout)
	}

	// While locked out, further attempts are denied with a positive,
	// shrinking retry-after.
	allowed, retryAfter = rec.apply(now.Add(10*time.Minute), probeLimit)
	if allowed {
		t.Fatalf("attempt during lockout allowed")
	}
	if retryAfter <= 0 || retryAfter > probeLimit.Lockout {
		t.Fatalf("retry-after during lockout = %v, want positive and at most %v", retryAfter, probeLimit.Lockout)
	}
}

func TestRateLimitLockoutExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &rateLimitRecord{}
	for i := 0; i < 10; i++ {
		rec.apply(now, probeLimit)
	}
	if allowed, _ := rec.check(now.Add(time.Minute)); allowed {
		t.Fatalf("check during lockout reports allowed")
	}

	after := now.Add(probeLimit.Lockout + 10*time.Second)
	if allowed, _ := rec.check(after); !allowed {
		t.Fatalf("check after lockout lapsed reports denied")
	}
	allowed, _ := rec.apply(after, probeLimit)
	if !allowed {
		t.Fatalf("attempt after lockout lapsed denied")
	}
	if rec.Attempts != 1 {
		t.Fatalf("attempts = %d after lockout reset, want a fresh window with 1", rec.Attempts)
	}
}

func TestRateLimitWindowResets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &rateLimitRecord{}
	for i := 0; i < 5; i++ {
		rec.apply(now, probeLimit)
	}

	later := now.Add(probeLimit.Window + time.Second)
	allowed, _ := rec.apply(later, probeLimit)
	if !allowed {
		t.Fatalf("attempt in a fresh window denied")
	}
	if rec.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 after the window reset", rec.Attempts)
	}
	if !rec.WindowStart.Equal(later) {
		t.Fatalf("window start = %v, want %v", rec.WindowStart, later)
	}
}

func TestRateLimitCheckDoesNotCount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &rateLimitRecord{}
	rec.apply(now, probeLimit)

	for i := 0; i < 50; i++ {
		if allowed, _ := rec.check(now); !allowed {
			t.Fatalf("check denied an unlocked client")
		}
	}
	if rec.Attempts != 1 {
		t.Fatalf("attempts = %d, check must not record attempts", rec.Attempts)
	}
}
