// Package character holds the player character sheets and the debounced
// write path that absorbs rapid sheet edits into a handful of store writes.
package character

import (
	"math"

	"gorm.io/gorm"
)

// Character is a player character sheet. CampaignID is nil until the
// character joins a campaign.
type Character struct {
	gorm.Model
	UserID     uint   `gorm:"index;not null" json:"user_id"`
	CampaignID *uint  `gorm:"index" json:"campaign_id"`
	Name       string `gorm:"size:255;not null" json:"name"`
	Race       string `gorm:"size:64" json:"race"`
	Class      string `gorm:"size:64" json:"class"`
	Level      int    `gorm:"not null;default:1" json:"level"`
	HP         int    `json:"hp"`
	MaxHP      int    `json:"max_hp"`
	AC         int    `json:"ac"`
	Str        int    `gorm:"not null;default:10" json:"str"`
	Dex        int    `gorm:"not null;default:10" json:"dex"`
	Con        int    `gorm:"not null;default:10" json:"con"`
	Int        int    `gorm:"not null;default:10" json:"int"`
	Wis        int    `gorm:"not null;default:10" json:"wis"`
	Cha        int    `gorm:"not null;default:10" json:"cha"`
	Inventory  string `gorm:"type:text" json:"inventory"`
	Notes      string `gorm:"type:text" json:"notes"`
	ImageURL   string `gorm:"size:2048" json:"image_url"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (Character) TableName() string {
	return "characters"
}

// Modifier derives the ability modifier from a raw score. The floor matters:
// a score of 9 is -1, not 0.
func Modifier(score int) int {
	return int(math.Floor(float64(score-10) / 2))
}

// OwnedBy reports whether the sheet belongs to the given user.
func (c *Character) OwnedBy(userID uint) bool {
	return c.UserID == userID
}
