package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"deckparty/models"

	"gorm.io/gorm"
)

// playerDataWarnBytes is the size guard on player_data writes. Crossing it
// logs a warning but never blocks the write.
const playerDataWarnBytes = 64 * 1024

// mutableGameColumns is the allow-list for partial updates. Anything else
// (id, created_at, settings) is silently dropped so a sloppy caller cannot
// overwrite immutable fields.
var mutableGameColumns = map[string]bool{
	"tags":          true,
	"draw_pile":     true,
	"discard_pile":  true,
	"player_data":   true,
	"round_history": true,
}

// gameColumnsNoHistory keeps round_history out of default reads; the column
// grows without bound and most callers never need it.
var gameColumnsNoHistory = []string{
	"id", "tags", "draw_pile", "discard_pile", "player_data",
	"state", "settings", "created_at", "updated_at",
}

// GameStore is the typed accessor over the games table. It owns field-level
// update rules; round/turn legality lives in GameService.
type GameStore struct {
	db *gorm.DB
}

func NewGameStore(db *gorm.DB) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) Find(gameID string, includeHistory bool) (*models.Game, error) {
	var game models.Game
	q := s.db
	if !includeHistory {
		q = q.Select(gameColumnsNoHistory)
	}
	if err := q.First(&game, "id = ?", gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
		}
		return nil, err
	}
	return &game, nil
}

// Create inserts a fresh record. A duplicate code reports ErrConflict so the
// caller can retry with a newly generated code.
func (s *GameStore) Create(game *models.Game) error {
	if err := s.db.Create(game).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: game code %s already exists", ErrConflict, game.ID)
		}
		return err
	}
	return nil
}

// Update applies a partial update restricted to the mutable-column
// allow-list. Unknown or immutable fields are dropped, not applied.
func (s *GameStore) Update(gameID string, fields map[string]interface{}) error {
	allowed := map[string]interface{}{}
	for k, v := range fields {
		if mutableGameColumns[k] {
			allowed[k] = v
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	if players, ok := allowed["player_data"].(models.PlayerMap); ok {
		warnPlayerDataSize(gameID, players)
	}
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).Updates(allowed).Error
}

// UpdatePiles writes only the two pile columns.
func (s *GameStore) UpdatePiles(gameID string, draw, discard models.PileMap) error {
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).Updates(map[string]interface{}{
		"draw_pile":    draw,
		"discard_pile": discard,
	}).Error
}

// UpdatePlayerData rewrites the whole roster. Only transitions with a single
// logical writer (start, pick-winner) may use it; concurrent hot paths must
// use UpdatePlayer so two players' writes cannot clobber each other.
func (s *GameStore) UpdatePlayerData(gameID string, players models.PlayerMap) error {
	warnPlayerDataSize(gameID, players)
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("player_data", players).Error
}

// UpdatePlayer writes one player's sub-entry in place.
func (s *GameStore) UpdatePlayer(gameID, playerID string, state *models.PlayerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: player state: %v", ErrEncoding, err)
	}
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("player_data", gorm.Expr("jsonb_set(player_data, ?, ?::jsonb)",
			fmt.Sprintf("{%s}", playerID), string(data))).Error
}

// RemovePlayerEntry deletes one player's sub-entry.
func (s *GameStore) RemovePlayerEntry(gameID, playerID string) error {
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("player_data", gorm.Expr("player_data - ?", playerID)).Error
}

// AdvanceRound applies a whole round transition (state, piles, roster) in a
// single compare-and-set UPDATE: it only lands while the stored record is
// still in (fromPhase, round). A duplicate trigger loses the race, gets
// false back, and must treat that as an idempotent no-op.
func (s *GameStore) AdvanceRound(gameID, fromPhase string, round int, next models.StateDoc, draw, discard models.PileMap, players models.PlayerMap) (bool, error) {
	warnPlayerDataSize(gameID, players)
	res := s.db.Model(&models.Game{}).
		Where("id = ? AND state->>'phase' = ? AND (state->>'round')::int = ?", gameID, fromPhase, round).
		Updates(map[string]interface{}{
			"state":        next,
			"draw_pile":    draw,
			"discard_pile": discard,
			"player_data":  players,
		})
	return res.RowsAffected > 0, res.Error
}

// AdvancePhase flips only the phase field under the same guard, preserving
// submissions written concurrently between the caller's read and this write.
func (s *GameStore) AdvancePhase(gameID, fromPhase, toPhase string, round int) (bool, error) {
	phase, err := json.Marshal(toPhase)
	if err != nil {
		return false, fmt.Errorf("%w: phase: %v", ErrEncoding, err)
	}
	res := s.db.Model(&models.Game{}).
		Where("id = ? AND state->>'phase' = ? AND (state->>'round')::int = ?", gameID, fromPhase, round).
		Update("state", gorm.Expr("jsonb_set(state, '{phase}', ?::jsonb)", string(phase)))
	return res.RowsAffected > 0, res.Error
}

// SetSubmission writes one player's in-flight submission without touching
// anyone else's.
func (s *GameStore) SetSubmission(gameID, playerID string, cards []uint) error {
	data, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("%w: submission: %v", ErrEncoding, err)
	}
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("state", gorm.Expr("jsonb_set(state, ?, ?::jsonb)",
			fmt.Sprintf("{submissions,%s}", playerID), string(data))).Error
}

func (s *GameStore) RemoveSubmission(gameID, playerID string) error {
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("state", gorm.Expr("state #- ?",
			fmt.Sprintf("{submissions,%s}", playerID))).Error
}

// AddSkipVote appends one voter to the czar-skip vote list in storage, so two
// concurrent voters cannot lose each other's vote.
func (s *GameStore) AddSkipVote(gameID, playerID string) error {
	data, err := json.Marshal(playerID)
	if err != nil {
		return fmt.Errorf("%w: skip vote: %v", ErrEncoding, err)
	}
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("state", gorm.Expr(
			"jsonb_set(state, '{skip_votes}', COALESCE(state->'skip_votes', '[]'::jsonb) || ?::jsonb)",
			string(data))).Error
}

// ClearSkipVotes resets the vote list after a forced czar reassignment.
func (s *GameStore) ClearSkipVotes(gameID string) error {
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("state", gorm.Expr("jsonb_set(state, '{skip_votes}', '[]'::jsonb)")).Error
}

// AppendRoundHistory appends atomically at the storage layer. Two rounds
// completing in overlapping requests both land; neither clobbers the other.
func (s *GameStore) AppendRoundHistory(gameID string, entry models.RoundSummary) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: round summary: %v", ErrEncoding, err)
	}
	return s.db.Model(&models.Game{}).Where("id = ?", gameID).
		Update("round_history", gorm.Expr(
			"COALESCE(round_history, '[]'::jsonb) || ?::jsonb", string(data))).Error
}

func (s *GameStore) Delete(gameID string) error {
	return s.db.Delete(&models.Game{}, "id = ?", gameID).Error
}

// GetOlderThan lists games not touched for the given number of days.
// Administrative; never on the request-serving path.
func (s *GameStore) GetOlderThan(days int) ([]models.Game, error) {
	var games []models.Game
	cutoff := time.Now().AddDate(0, 0, -days)
	err := s.db.Select(gameColumnsNoHistory).
		Where("updated_at < ?", cutoff).Find(&games).Error
	return games, err
}

// DeleteOlderThan garbage-collects abandoned games.
func (s *GameStore) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.Delete(&models.Game{}, "updated_at < ?", cutoff)
	return res.RowsAffected, res.Error
}

func warnPlayerDataSize(gameID string, players models.PlayerMap) {
	data, err := json.Marshal(players)
	if err != nil {
		return
	}
	if len(data) > playerDataWarnBytes {
		log.Printf("player_data for game %s is %d bytes (warn threshold %d)",
			gameID, len(data), playerDataWarnBytes)
	}
}
