package models

import (
	"time"

	"gorm.io/gorm"
)

// Tag is a content-warning label (Profanity, Violence, ...). A game stores
// the set of tag IDs to exclude; deck building filters out any card carrying
// one of them.
type Tag struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
