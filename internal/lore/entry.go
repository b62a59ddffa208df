package lore

import (
	"gorm.io/gorm"

	"opentales/app/internal/viewer"
)

// Entry represents a node in a campaign's lore hierarchy. ParentID is nil for
// root-level entries attached to the campaign itself. An entry carrying a
// MapImageURL acts as a map context for its descendants.
type Entry struct {
	gorm.Model
	CampaignID  uint   `gorm:"index;not null" json:"campaign_id"`
	ParentID    *uint  `gorm:"index" json:"parent_id"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Content     string `gorm:"type:text" json:"content"`
	IsPublic    bool   `gorm:"not null;default:false" json:"is_public"`
	ImageURL    string `gorm:"size:1024" json:"image_url"`
	MapImageURL string `gorm:"size:1024" json:"map_image_url"`
	IconType    string `gorm:"size:32;not null;default:book" json:"icon_type"`

	// Children of a deleted entry are removed by the store itself.
	Parent *Entry `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName defines the table name for the Entry model.
func (Entry) TableName() string {
	return "lore_entries"
}

// VisibleTo reports whether the entry is visible to the given viewer.
func (e Entry) VisibleTo(v viewer.Context) bool {
	return v.CanSee(e.IsPublic)
}

// HasMap reports whether the entry carries its own map image.
func (e Entry) HasMap() bool {
	return e.MapImageURL != ""
}

// DefaultIcon is assigned when no icon is chosen for an entry or pin.
const DefaultIcon = "book"

var iconVocabulary = map[string]struct{}{
	"book": {}, "map-pin": {}, "castle": {}, "home": {}, "trees": {},
	"mountain": {}, "beer": {}, "skull": {}, "users": {}, "sword": {},
	"shield": {}, "scroll": {}, "key": {}, "store": {}, "ghost": {},
	"waves": {}, "anchor": {}, "flame": {}, "sparkles": {}, "droplets": {},
	"landmark": {}, "compass": {},
}

// ValidIcon reports whether the icon tag belongs to the fixed vocabulary.
func ValidIcon(icon string) bool {
	_, ok := iconVocabulary[icon]
	return ok
}

// NormalizeIcon returns the icon itself when valid and the default otherwise.
func NormalizeIcon(icon string) string {
	if ValidIcon(icon) {
		return icon
	}
	return DefaultIcon
}
