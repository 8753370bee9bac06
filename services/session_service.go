package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session binds an opaque token to one (player, game) pair. The session
// layer is the only component that reads or writes this binding; the game
// engine always receives an already-validated pair.
type Session struct {
	PlayerID  string    `json:"player_id"`
	GameID    string    `json:"game_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionService struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSessionService(client *redis.Client, ttl time.Duration) *SessionService {
	return &SessionService{redis: client, ttl: ttl}
}

// Create issues a fresh token bound to (playerID, gameID).
func (s *SessionService) Create(ctx context.Context, playerID, gameID string) (string, error) {
	session := Session{
		PlayerID:  playerID,
		GameID:    gameID,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("%w: session: %v", ErrEncoding, err)
	}
	token := uuid.NewString()
	if err := s.redis.Set(ctx, sessionKey(token), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// Get resolves a token; a missing or expired token is ErrUnauthorized.
// Touching a live session refreshes its TTL so active players never expire
// mid-game.
func (s *SessionService) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: no live session", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("%w: session: %v", ErrEncoding, err)
	}
	s.redis.Expire(ctx, sessionKey(token), s.ttl)
	return &session, nil
}

// Delete drops the binding (leave/logout).
func (s *SessionService) Delete(ctx context.Context, token string) error {
	return s.redis.Del(ctx, sessionKey(token)).Err()
}

func sessionKey(token string) string {
	return "session:" + token
}
