package pin

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"opentales/app/internal/lore"
)

// Repository is the persistence boundary for map pins.
type Repository interface {
	ListByContext(ctx context.Context, campaignID uint, parentLoreID *uint) ([]Pin, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]Pin, error)
	GetByID(ctx context.Context, id uint) (*Pin, error)
	Create(ctx context.Context, pin *Pin) error
	CreateWithEntry(ctx context.Context, entry *lore.Entry, pin *Pin) error
	Update(ctx context.Context, pin *Pin) error
	Delete(ctx context.Context, id uint) error
	SyncIcon(ctx context.Context, loreID uint, iconType string) error
}

// GormRepository stores pins through Gorm.
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

var (
	_ Repository     = (*GormRepository)(nil)
	_ lore.PinSyncer = (*GormRepository)(nil)
)

// ListByContext returns the pins of one map surface: the campaign-level map
// when parentLoreID is nil, otherwise the map owned by that lore entry. The
// partition is strict: campaign pins never show on entry maps and vice
// versa. The referenced lore entries are preloaded for visibility checks.
func (r *GormRepository) ListByContext(ctx context.Context, campaignID uint, parentLoreID *uint) ([]Pin, error) {
	query := r.db.WithContext(ctx).
		Preload("Lore").
		Where("campaign_id = ?", campaignID)
	if parentLoreID == nil {
		query = query.Where("parent_lore_id IS NULL")
	} else {
		query = query.Where("parent_lore_id = ?", *parentLoreID)
	}

	var pins []Pin
	if err := query.Order("created_at ASC").Find(&pins).Error; err != nil {
		wrapped := eris.Wrapf(err, "listing pins for campaign %d", campaignID)
		r.logError(logrus.Fields{"campaign_id": campaignID}, wrapped, "failed to list pins")
		return nil, wrapped
	}
	return pins, nil
}

// ListByCampaign returns every pin of the campaign regardless of surface,
// used for per-entry pin badges in the lore tree.
func (r *GormRepository) ListByCampaign(ctx context.Context, campaignID uint) ([]Pin, error) {
	var pins []Pin
	err := r.db.WithContext(ctx).
		Preload("Lore").
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Find(&pins).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "listing all pins for campaign %d", campaignID)
		r.logError(logrus.Fields{"campaign_id": campaignID}, wrapped, "failed to list campaign pins")
		return nil, wrapped
	}
	return pins, nil
}

// GetByID returns the pin or nil when no row exists.
func (r *GormRepository) GetByID(ctx context.Context, id uint) (*Pin, error) {
	var pin Pin
	err := r.db.WithContext(ctx).Preload("Lore").First(&pin, id).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrapf(err, "fetching pin %d", id)
		r.logError(logrus.Fields{"pin_id": id}, wrapped, "failed to fetch pin")
		return nil, wrapped
	}
	return &pin, nil
}

// Create persists a pin pointing at an existing lore entry.
func (r *GormRepository) Create(ctx context.Context, pin *Pin) error {
	if err := r.db.WithContext(ctx).Create(pin).Error; err != nil {
		wrapped := eris.Wrapf(err, "creating pin for lore entry %d", pin.LoreID)
		r.logError(logrus.Fields{"lore_id": pin.LoreID}, wrapped, "failed to create pin")
		return wrapped
	}
	return nil
}

// CreateWithEntry creates a lore entry and its pin in one transaction so a
// failed pin write never leaves an orphaned entry behind.
func (r *GormRepository) CreateWithEntry(ctx context.Context, entry *lore.Entry, pin *Pin) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if strings.TrimSpace(entry.Title) == "" {
			return eris.New("lore entry title is required")
		}
		if err := tx.Create(entry).Error; err != nil {
			return eris.Wrapf(err, "creating lore entry %q", entry.Title)
		}
		pin.LoreID = entry.ID
		pin.CampaignID = entry.CampaignID
		if err := tx.Create(pin).Error; err != nil {
			return eris.Wrapf(err, "creating pin for new entry %d", entry.ID)
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"title": entry.Title}, err, "failed to create pin with entry")
		return err
	}
	return nil
}

// Update persists edits to an existing pin.
func (r *GormRepository) Update(ctx context.Context, pin *Pin) error {
	if err := r.db.WithContext(ctx).Omit("Lore").Save(pin).Error; err != nil {
		wrapped := eris.Wrapf(err, "updating pin %d", pin.ID)
		r.logError(logrus.Fields{"pin_id": pin.ID}, wrapped, "failed to update pin")
		return wrapped
	}
	return nil
}

// Delete removes the pin row.
func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&Pin{}, id).Error; err != nil {
		wrapped := eris.Wrapf(err, "deleting pin %d", id)
		r.logError(logrus.Fields{"pin_id": id}, wrapped, "failed to delete pin")
		return wrapped
	}
	return nil
}

// SyncIcon mirrors a lore entry's icon onto every pin referencing it, keeping
// map markers in step with the entry they open.
func (r *GormRepository) SyncIcon(ctx context.Context, loreID uint, iconType string) error {
	err := r.db.WithContext(ctx).
		Model(&Pin{}).
		Where("lore_id = ?", loreID).
		Update("icon_type", iconType).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "syncing pin icons for lore entry %d", loreID)
		r.logError(logrus.Fields{"lore_id": loreID, "icon_type": iconType}, wrapped, "failed to sync pin icons")
		return wrapped
	}
	return nil
}

// Migrate creates or updates the map_pins table.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&Pin{}); err != nil {
		wrapped := eris.Wrap(err, "migrating map_pins table")
		if logger != nil {
			logger.WithError(wrapped).Error("pin migration failed")
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
