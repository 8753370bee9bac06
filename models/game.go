package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Round phases. ROUND_COMPLETE is transient: picking a winner performs the
// round-complete bookkeeping and stores the next round's submitting phase (or
// finished) in the same transition, so the record never holds it.
const (
	PhaseWaiting    = "waiting"
	PhaseSubmitting = "submitting"
	PhaseJudging    = "judging"
	PhaseFinished   = "finished"
)

// Game is the authoritative record for one active game, keyed by its
// 4-character shareable code. The sub-documents are JSONB columns so the hot
// paths can write a single field (or a single player's entry) without
// rewriting the whole row.
type Game struct {
	ID           string      `json:"game_id" gorm:"primaryKey;size:8"`
	Tags         UintList    `json:"tags" gorm:"type:jsonb"`
	DrawPile     PileMap     `json:"draw_pile" gorm:"type:jsonb"`
	DiscardPile  PileMap     `json:"discard_pile" gorm:"type:jsonb"`
	PlayerData   PlayerMap   `json:"player_data" gorm:"type:jsonb"`
	RoundHistory HistoryList `json:"round_history,omitempty" gorm:"type:jsonb"`
	State        StateDoc    `json:"state" gorm:"type:jsonb"`
	Settings     SettingsDoc `json:"settings" gorm:"type:jsonb"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// StateDoc is the round-progress sub-document: current phase and round
// number, the active prompt, and the in-flight submissions keyed by player
// ID. Submitted cards live here (not in any pile) until the round is judged.
type StateDoc struct {
	Phase       string            `json:"phase"`
	Round       int               `json:"round"`
	PromptCard  uint              `json:"prompt_card,omitempty"`
	Submissions map[string][]uint `json:"submissions"`
	SkipVotes   []string          `json:"skip_votes"`
}

// SettingsDoc is fixed at creation.
type SettingsDoc struct {
	MinPlayers int  `json:"min_players"`
	MaxPlayers int  `json:"max_players"`
	HandSize   int  `json:"hand_size"`
	WinScore   int  `json:"win_score"`
	UseRando   bool `json:"use_rando"`
}

// RoundSummary is one completed round in the append-only history.
type RoundSummary struct {
	Round       int               `json:"round"`
	Czar        string            `json:"czar"`
	PromptCard  uint              `json:"prompt_card"`
	Submissions map[string][]uint `json:"submissions"`
	Winner      string            `json:"winner"`
	CompletedAt time.Time         `json:"completed_at"`
}

// PileMap maps a card type (prompt|response) to the ordered card IDs left in
// that pile. The order is the shuffle order; cards are always taken from the
// front.
type PileMap map[string][]uint

// UintList is a JSONB-encoded ID list (excluded content tags on a game).
type UintList []uint

// HistoryList is the append-only round history column.
type HistoryList []RoundSummary

func (m PileMap) Value() (driver.Value, error)  { return json.Marshal(m) }
func (m *PileMap) Scan(src interface{}) error   { return scanJSON(src, m) }
func (l UintList) Value() (driver.Value, error) { return json.Marshal(l) }
func (l *UintList) Scan(src interface{}) error  { return scanJSON(src, l) }

func (h HistoryList) Value() (driver.Value, error) { return json.Marshal(h) }
func (h *HistoryList) Scan(src interface{}) error  { return scanJSON(src, h) }

func (s StateDoc) Value() (driver.Value, error) { return json.Marshal(s) }
func (s *StateDoc) Scan(src interface{}) error  { return scanJSON(src, s) }

func (s SettingsDoc) Value() (driver.Value, error) { return json.Marshal(s) }
func (s *SettingsDoc) Scan(src interface{}) error  { return scanJSON(src, s) }

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
