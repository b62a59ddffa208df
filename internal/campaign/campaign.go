// Package campaign manages campaigns and the invite-code gate that controls
// who may enter one. The owner of a campaign is its DM; every other member
// joins through an invite code and plays through a linked character.
package campaign

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Campaign is the top-level container every lore entry, pin, character and
// session belongs to.
type Campaign struct {
	gorm.Model
	UserID      uint   `gorm:"index;not null" json:"user_id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"size:2048" json:"image_url"`
	MapImageURL string `gorm:"size:2048" json:"map_image_url"`
	InviteCode  string `gorm:"size:16;uniqueIndex;not null" json:"invite_code"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (Campaign) TableName() string {
	return "campaigns"
}

// OwnedBy reports whether the given user created the campaign and therefore
// acts as its DM.
func (c *Campaign) OwnedBy(userID uint) bool {
	return c.UserID == userID
}

// NewInviteCode mints a short shareable code. Hyphens are stripped and the
// code is upper-cased so it survives being read out loud at a table.
func NewInviteCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
