package campaign

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository is the persistence boundary for campaigns.
type Repository interface {
	ListByOwner(ctx context.Context, userID uint) ([]Campaign, error)
	GetByID(ctx context.Context, id uint) (*Campaign, error)
	GetByInviteCode(ctx context.Context, code string) (*Campaign, error)
	Create(ctx context.Context, campaign *Campaign) error
	Update(ctx context.Context, campaign *Campaign) error
	Delete(ctx context.Context, id uint) error
}

// GormRepository stores campaigns through Gorm.
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

// ListByOwner returns the campaigns created by the user, newest first.
func (r *GormRepository) ListByOwner(ctx context.Context, userID uint) ([]Campaign, error) {
	var campaigns []Campaign
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&campaigns).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "listing campaigns for user %d", userID)
		r.logError(logrus.Fields{"user_id": userID}, wrapped, "failed to list campaigns")
		return nil, wrapped
	}
	return campaigns, nil
}

// GetByID returns the campaign or nil when no row exists.
func (r *GormRepository) GetByID(ctx context.Context, id uint) (*Campaign, error) {
	var campaign Campaign
	err := r.db.WithContext(ctx).First(&campaign, id).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrapf(err, "fetching campaign %d", id)
		r.logError(logrus.Fields{"campaign_id": id}, wrapped, "failed to fetch campaign")
		return nil, wrapped
	}
	return &campaign, nil
}

// GetByInviteCode looks a campaign up by its shareable code. Codes are stored
// upper-case; the lookup is forgiving about what the player typed.
func (r *GormRepository) GetByInviteCode(ctx context.Context, code string) (*Campaign, error) {
	var campaign Campaign
	err := r.db.WithContext(ctx).
		Where("upper(invite_code) = upper(?)", code).
		First(&campaign).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrap(err, "fetching campaign by invite code")
		r.logError(logrus.Fields{}, wrapped, "failed to fetch campaign by invite code")
		return nil, wrapped
	}
	return &campaign, nil
}

// Create persists a new campaign.
func (r *GormRepository) Create(ctx context.Context, campaign *Campaign) error {
	if err := r.db.WithContext(ctx).Create(campaign).Error; err != nil {
		wrapped := eris.Wrapf(err, "creating campaign %q", campaign.Name)
		r.logError(logrus.Fields{"name": campaign.Name}, wrapped, "failed to create campaign")
		return wrapped
	}
	return nil
}

// Update persists edits to an existing campaign.
func (r *GormRepository) Update(ctx context.Context, campaign *Campaign) error {
	if err := r.db.WithContext(ctx).Save(campaign).Error; err != nil {
		wrapped := eris.Wrapf(err, "updating campaign %d", campaign.ID)
		r.logError(logrus.Fields{"campaign_id": campaign.ID}, wrapped, "failed to update campaign")
		return wrapped
	}
	return nil
}

// Delete removes the campaign row.
func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&Campaign{}, id).Error; err != nil {
		wrapped := eris.Wrapf(err, "deleting campaign %d", id)
		r.logError(logrus.Fields{"campaign_id": id}, wrapped, "failed to delete campaign")
		return wrapped
	}
	return nil
}

// Migrate creates or updates the campaigns table.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&Campaign{}); err != nil {
		wrapped := eris.Wrap(err, "migrating campaigns table")
		if logger != nil {
			logger.WithError(wrapped).Error("campaign migration failed")
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
