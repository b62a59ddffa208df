package character

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository is the persistence boundary for character sheets.
type Repository interface {
	ListByUser(ctx context.Context, userID uint) ([]Character, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]Character, error)
	GetByID(ctx context.Context, id uint) (*Character, error)
	Create(ctx context.Context, character *Character) error
	Update(ctx context.Context, character *Character) error
	UpdateFields(ctx context.Context, id uint, updates map[string]any) error
	Delete(ctx context.Context, id uint) error
}

// GormRepository stores characters through Gorm.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// ListByUser returns the user's characters, newest first.
func (r *GormRepository) ListByUser(ctx context.Context, userID uint) ([]Character, error) {
	var characters []Character
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&characters).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "listing characters for user %d", userID)
		r.logError(logrus.Fields{"user_id": userID}, wrapped, "failed to list characters")
		return nil, wrapped
	}
	return characters, nil
}

// ListByCampaign returns the characters playing in a campaign.
func (r *GormRepository) ListByCampaign(ctx context.Context, campaignID uint) ([]Character, error) {
	var characters []Character
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&characters).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "listing characters for campaign %d", campaignID)
		r.logError(logrus.Fields{"campaign_id": campaignID}, wrapped, "failed to list campaign characters")
		return nil, wrapped
	}
	return characters, nil
}

// GetByID returns the character or nil when no row exists.
func (r *GormRepository) GetByID(ctx context.Context, id uint) (*Character, error) {
	var character Character
	err := r.db.WithContext(ctx).First(&character, id).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrapf(err, "fetching character %d", id)
		r.logError(logrus.Fields{"character_id": id}, wrapped, "failed to fetch character")
		return nil, wrapped
	}
	return &character, nil
}

// Create persists a new character sheet.
func (r *GormRepository) Create(ctx context.Context, character *Character) error {
	if err := r.db.WithContext(ctx).Create(character).Error; err != nil {
		wrapped := eris.Wrapf(err, "creating character %q", character.Name)
		r.logError(logrus.Fields{"name": character.Name}, wrapped, "failed to create character")
		return wrapped
	}
	return nil
}

// Update persists the full sheet.
func (r *GormRepository) Update(ctx context.Context, character *Character) error {
	if err := r.db.WithContext(ctx).Save(character).Error; err != nil {
		wrapped := eris.Wrapf(err, "updating character %d", character.ID)
		r.logError(logrus.Fields{"character_id": character.ID}, wrapped, "failed to update character")
		return wrapped
	}
	return nil
}

// UpdateFields writes one coalesced batch of column updates, the flush path
// of the debounced sheet editor.
func (r *GormRepository) UpdateFields(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&Character{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "updating character %d fields", id)
		r.logError(logrus.Fields{"character_id": id}, wrapped, "failed to flush character updates")
		return wrapped
	}
	return nil
}

// Delete removes the character row.
func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&Character{}, id).Error; err != nil {
		wrapped := eris.Wrapf(err, "deleting character %d", id)
		r.logError(logrus.Fields{"character_id": id}, wrapped, "failed to delete character")
		return wrapped
	}
	return nil
}

// Migrate creates or updates the characters table.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&Character{}); err != nil {
		wrapped := eris.Wrap(err, "migrating characters table")
		if logger != nil {
			logger.WithError(wrapped).Error("character migration failed")
		}
		return wrapped
	}
	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}
	r.logger.WithFields(fields).WithError(err).Error(message)
}
