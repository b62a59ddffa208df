// Package session keeps the campaign journal: play sessions, the notes taken
// during them and the campaign-level session log.
package session

import (
	"time"

	"gorm.io/gorm"

	"opentales/app/internal/character"
)

// Session is one play session of a campaign.
type Session struct {
	gorm.Model
	CampaignID  uint      `gorm:"index;not null" json:"campaign_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	SessionDate time.Time `gorm:"index;not null" json:"session_date"`
	Summary     string    `gorm:"type:text" json:"summary"`
	Notes       []Note    `gorm:"constraint:OnDelete:CASCADE" json:"notes,omitempty"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (Session) TableName() string {
	return "sessions"
}

// Note is one note taken during a session, optionally attributed to the
// character who said or did the thing.
type Note struct {
	gorm.Model
	SessionID   uint                 `gorm:"index;not null" json:"session_id"`
	CharacterID *uint                `gorm:"index" json:"character_id"`
	Content     string               `gorm:"type:text;not null" json:"content"`
	Character   *character.Character `gorm:"foreignKey:CharacterID" json:"character,omitempty"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (Note) TableName() string {
	return "session_notes"
}

// Log is a campaign-level journal line outside any one session.
type Log struct {
	gorm.Model
	CampaignID uint   `gorm:"index;not null" json:"campaign_id"`
	Content    string `gorm:"type:text;not null" json:"content"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (Log) TableName() string {
	return "session_logs"
}
