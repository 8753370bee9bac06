package models

import (
	"database/sql/driver"
	"encoding/json"
)

// PlayerState is one player's entry inside a game record. Player IDs are
// stable for the life of the game; removing a player deletes the entry
// without reassigning anyone else's ID or join order.
type PlayerState struct {
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Hand      []uint `json:"hand"`
	IsCreator bool   `json:"is_creator"`
	IsCzar    bool   `json:"is_czar"`
	IsPaused  bool   `json:"is_paused"`
	IsRando   bool   `json:"is_rando"`
	// JoinOrder drives czar rotation. It is fractional so a late joiner can
	// be slotted between two existing players without renumbering.
	JoinOrder float64 `json:"join_order"`
}

// PlayerMap maps player ID to that player's state.
type PlayerMap map[string]*PlayerState

func (m PlayerMap) Value() (driver.Value, error) { return json.Marshal(m) }
func (m *PlayerMap) Scan(src interface{}) error  { return scanJSON(src, m) }
