// Package pin places lore entries on map surfaces. Every pin belongs to a
// campaign and points at a lore entry; its parent lore id selects which map
// it lives on: nil for the campaign-level map, otherwise the entry whose own
// map the pin sits on. Coordinates are percentages of the map surface so they
// survive image resizes.
package pin

import (
	"gorm.io/gorm"

	"opentales/app/internal/lore"
	"opentales/app/internal/viewer"
)

// Pin is a marker on a map surface.
type Pin struct {
	gorm.Model
	CampaignID   uint        `gorm:"index;not null" json:"campaign_id"`
	LoreID       uint        `gorm:"index;not null" json:"lore_id"`
	ParentLoreID *uint       `gorm:"index" json:"parent_lore_id"`
	XPos         float64     `gorm:"not null" json:"x_pos"`
	YPos         float64     `gorm:"not null" json:"y_pos"`
	IconType     string      `gorm:"size:32;not null;default:map-pin" json:"icon_type"`
	Lore         *lore.Entry `gorm:"foreignKey:LoreID;constraint:OnDelete:CASCADE" json:"lore,omitempty"`
}

// TableName keeps the table name stable across Gorm naming-strategy changes.
func (Pin) TableName() string {
	return "map_pins"
}

// VisibleTo reports whether the viewer may see the pin. A pin is only as
// visible as the lore entry it points at; a pin with no loaded entry is
// treated as hidden rather than leaked.
func (p *Pin) VisibleTo(v viewer.Context) bool {
	if v.IsDM {
		return true
	}
	return p.Lore != nil && p.Lore.IsPublic
}

// InBounds reports whether the percentage coordinates sit on the map surface.
func InBounds(x, y float64) bool {
	return x >= 0 && x <= 100 && y >= 0 && y <= 100
}
