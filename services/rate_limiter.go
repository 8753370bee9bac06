package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"deckparty/config"

	"github.com/redis/go-redis/v9"
)

// Rate-limited action types, keyed together with the client IP.
const (
	ActionJoinGame       = "join_game"
	ActionCreateGame     = "create_game"
	ActionFailedGameCode = "failed_game_code"
	ActionAdminLogin     = "admin_login"
)

// rateLimitRecord is one (client IP, action) counter stored in Redis. It
// expires naturally once both the window and any lockout have lapsed.
type rateLimitRecord struct {
	Attempts    int       `json:"attempts"`
	WindowStart time.Time `json:"window_start"`
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

// apply records one attempt at now and reports whether the client is still
// allowed, plus how long until a retry could succeed. The window resets once
// its start is older than the configured length; a lockout holds regardless
// of window resets until its timestamp passes.
func (r *rateLimitRecord) apply(now time.Time, limit config.Limit) (bool, time.Duration) {
	if now.Before(r.LockedUntil) {
		return false, r.LockedUntil.Sub(now)
	}
	if r.WindowStart.IsZero() || now.Sub(r.WindowStart) > limit.Window {
		r.WindowStart = now
		r.Attempts = 0
	}
	r.Attempts++
	if r.Attempts >= limit.MaxAttempts {
		r.LockedUntil = now.Add(limit.Lockout)
		return false, limit.Lockout
	}
	return true, 0
}

// check reports lockout state without recording an attempt.
func (r *rateLimitRecord) check(now time.Time) (bool, time.Duration) {
	if now.Before(r.LockedUntil) {
		return false, r.LockedUntil.Sub(now)
	}
	return true, 0
}

// RateLimiter tracks per-IP, per-action sliding windows in Redis. The two
// buckets relevant to one request (probe lockout and a hard action cap) are
// independent and can both deny; callers check each on its own.
type RateLimiter struct {
	redis  *redis.Client
	limits map[string]config.Limit
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, cfg *config.Config) *RateLimiter {
	return &RateLimiter{
		redis: client,
		limits: map[string]config.Limit{
			ActionJoinGame:       cfg.JoinLimit,
			ActionCreateGame:     cfg.CreateLimit,
			ActionFailedGameCode: cfg.ProbeLimit,
			ActionAdminLogin:     cfg.AdminLoginLimit,
		},
		now: time.Now,
	}
}

// Allow records one attempt for (ip, action) and reports the verdict. Denial
// must short-circuit the request before any game state is touched. Redis
// failures fail open with a log line rather than taking the API down.
func (l *RateLimiter) Allow(ctx context.Context, ip, action string) (bool, time.Duration) {
	limit, ok := l.limits[action]
	if !ok {
		return true, 0
	}
	now := l.now()
	rec, err := l.load(ctx, ip, action)
	if err != nil {
		log.Printf("Rate limiter unavailable for %s/%s: %v", action, ip, err)
		return true, 0
	}
	allowed, retryAfter := rec.apply(now, limit)
	if err := l.save(ctx, ip, action, rec, limit); err != nil {
		log.Printf("Failed to save rate limit record for %s/%s: %v", action, ip, err)
	}
	return allowed, retryAfter
}

// Check reports the lockout state for (ip, action) without counting an
// attempt. Used to short-circuit locked-out clients on every request.
func (l *RateLimiter) Check(ctx context.Context, ip, action string) (bool, time.Duration) {
	rec, err := l.load(ctx, ip, action)
	if err != nil {
		log.Printf("Rate limiter unavailable for %s/%s: %v", action, ip, err)
		return true, 0
	}
	return rec.check(l.now())
}

func limiterKey(ip, action string) string {
	return fmt.Sprintf("ratelimit:%s:%s", action, ip)
}

func (l *RateLimiter) load(ctx context.Context, ip, action string) (*rateLimitRecord, error) {
	data, err := l.redis.Get(ctx, limiterKey(ip, action)).Result()
	if err == redis.Nil {
		return &rateLimitRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	var rec rateLimitRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		// A corrupt record starts over rather than wedging the client.
		log.Printf("Discarding unreadable rate limit record %s: %v", limiterKey(ip, action), err)
		return &rateLimitRecord{}, nil
	}
	return &rec, nil
}

func (l *RateLimiter) save(ctx context.Context, ip, action string, rec *rateLimitRecord, limit config.Limit) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: rate limit record: %v", ErrEncoding, err)
	}
	ttl := limit.Window
	if limit.Lockout > ttl {
		ttl = limit.Lockout
	}
	return l.redis.Set(ctx, limiterKey(ip, action), data, ttl).Err()
}
