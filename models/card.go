package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CardTypePrompt   = "prompt"
	CardTypeResponse = "response"
)

// Content levels, ordered basic < mild < medium < severe.
const (
	LevelBasic  = "basic"
	LevelMild   = "mild"
	LevelMedium = "medium"
	LevelSevere = "severe"
)

type Card struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Type   string `json:"type" gorm:"not null;index"`
	Text   string `json:"text" gorm:"not null"`
	Blanks int    `json:"blanks" gorm:"not null;default:1"` // response cards a prompt calls for
	Level  string `json:"level" gorm:"not null;default:'basic'"`
	PackID uint   `json:"pack_id" gorm:"index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Pack Pack  `json:"pack,omitempty"`
	Tags []Tag `json:"tags,omitempty" gorm:"many2many:card_tags;"`
}
