package lore

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for lore entries.
type Repository interface {
	ListByCampaign(ctx context.Context, campaignID uint) ([]Entry, error)
	GetByID(ctx context.Context, id uint) (*Entry, error)
	Create(ctx context.Context, entry *Entry) error
	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, id uint) error
	SetPublicBulk(ctx context.Context, ids []uint, isPublic bool) error
}

// GormRepository persists entries using a Gorm database connection.
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

// ListByCampaign returns every entry in the campaign ordered by creation
// time, the stable order the tree builder assumes.
func (r *GormRepository) ListByCampaign(ctx context.Context, campaignID uint) ([]Entry, error) {
	var entries []Entry

	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		r.logError(logrus.Fields{"campaign_id": campaignID}, err, "listing lore entries")
		return nil, eris.Wrap(err, "listing lore entries")
	}

	return entries, nil
}

// GetByID returns the entry or nil when not found.
func (r *GormRepository) GetByID(ctx context.Context, id uint) (*Entry, error) {
	var entry Entry
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"entry_id": id}, err, "fetching lore entry")
		return nil, eris.Wrapf(err, "fetching lore entry %d", id)
	}

	return &entry, nil
}

// Create stores a new entry after trimming its title.
func (r *GormRepository) Create(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return eris.New("entry is nil")
	}
	if strings.TrimSpace(entry.Title) == "" {
		return eris.New("entry title is required")
	}
	entry.Title = strings.TrimSpace(entry.Title)

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logError(logrus.Fields{"title": entry.Title}, err, "creating lore entry")
		return eris.Wrapf(err, "creating lore entry: %s", entry.Title)
	}

	return nil
}

// Update persists the full entry row.
func (r *GormRepository) Update(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return eris.New("entry is nil")
	}
	if strings.TrimSpace(entry.Title) == "" {
		return eris.New("entry title is required")
	}
	entry.Title = strings.TrimSpace(entry.Title)

	if err := r.db.WithContext(ctx).Save(entry).Error; err != nil {
		r.logError(logrus.Fields{"entry_id": entry.ID}, err, "updating lore entry")
		return eris.Wrapf(err, "updating lore entry %d", entry.ID)
	}

	return nil
}

// Delete removes the entry. Descendant entries and pins referencing it are
// removed by the store's cascading foreign keys, not by application code.
func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&Entry{}, id).Error; err != nil {
		r.logError(logrus.Fields{"entry_id": id}, err, "deleting lore entry")
		return eris.Wrapf(err, "deleting lore entry %d", id)
	}

	return nil
}

// SetPublicBulk updates the visibility flag on the given entries in one
// statement, the write a confirmed cascade issues for the descendant closure.
func (r *GormRepository) SetPublicBulk(ctx context.Context, ids []uint, isPublic bool) error {
	if len(ids) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("id IN ?", ids).
		Update("is_public", isPublic).Error
	if err != nil {
		r.logError(logrus.Fields{"count": len(ids)}, err, "bulk updating entry visibility")
		return eris.Wrap(err, "bulk updating entry visibility")
	}

	return nil
}

// Migrate applies the lore schema using Gorm's AutoMigrate and logs progress.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	logFields := logrus.Fields{"component": "lore.migrate"}
	if logger != nil {
		logger.WithFields(logFields).Info("applying lore schema")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		if logger != nil {
			logger.WithFields(logFields).WithField("error", err.Error()).Error("lore schema migration failed")
		}
		return eris.Wrap(err, "auto migrating lore schema")
	}

	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
