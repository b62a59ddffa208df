package pin

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/lore"
	"opentales/app/internal/viewer"
)

// PinInput carries the editable fields of a pin.
type PinInput struct {
	LoreID       uint
	ParentLoreID *uint
	XPos         float64
	YPos         float64
	IconType     string
}

// EntryPinInput creates a fresh lore entry together with its pin in one
// step, the quick "drop a pin and name it" flow on the map.
type EntryPinInput struct {
	Title        string
	Content      string
	IsPublic     bool
	IconType     string
	ParentLoreID *uint
	XPos         float64
	YPos         float64
}

var (
	// ErrPinNotFound indicates the requested pin does not exist.
	ErrPinNotFound = eris.New("pin not found")
	// ErrOutOfBounds indicates coordinates outside the 0..100 percentage
	// range of the map surface.
	ErrOutOfBounds = eris.New("pin coordinates must lie within the map surface")
	// ErrNotDM indicates a pin mutation attempted by a viewer without DM
	// rights.
	ErrNotDM = eris.New("only the campaign DM can modify pins")
)

// Service exposes map pin management.
type Service interface {
	List(ctx context.Context, campaignID uint, parentLoreID *uint, v viewer.Context) ([]Pin, error)
	Badges(ctx context.Context, campaignID uint, v viewer.Context) (map[uint]int, error)
	Create(ctx context.Context, campaignID uint, input PinInput, v viewer.Context) (*Pin, error)
	CreateWithEntry(ctx context.Context, campaignID uint, input EntryPinInput, v viewer.Context) (*Pin, error)
	Move(ctx context.Context, campaignID, id uint, x, y float64, v viewer.Context) (*Pin, error)
	Delete(ctx context.Context, campaignID, id uint, v viewer.Context) error
}

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the pin service with its dependencies.
func NewService(repo Repository, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("pin repository is required")
	}

	return &service{repo: repo, logger: logger, sentryHub: hub}, nil
}

// List returns the pins of one map surface, filtered to what the viewer may
// see.
func (s *service) List(ctx context.Context, campaignID uint, parentLoreID *uint, v viewer.Context) ([]Pin, error) {
	pins, err := s.repo.ListByContext(ctx, campaignID, parentLoreID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing pins")
		return nil, err
	}

	visible := make([]Pin, 0, len(pins))
	for _, p := range pins {
		if p.VisibleTo(v) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// Badges counts the visible pins per lore entry across every map surface of
// the campaign, used to badge tree nodes that appear on a map.
func (s *service) Badges(ctx context.Context, campaignID uint, v viewer.Context) (map[uint]int, error) {
	pins, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing pins for badges")
		return nil, err
	}

	counts := make(map[uint]int)
	for _, p := range pins {
		if p.VisibleTo(v) {
			counts[p.LoreID]++
		}
	}
	return counts, nil
}

func (s *service) Create(ctx context.Context, campaignID uint, input PinInput, v viewer.Context) (*Pin, error) {
	if !v.IsDM {
		return nil, ErrNotDM
	}
	if !InBounds(input.XPos, input.YPos) {
		return nil, ErrOutOfBounds
	}

	pin := &Pin{
		CampaignID:   campaignID,
		LoreID:       input.LoreID,
		ParentLoreID: input.ParentLoreID,
		XPos:         input.XPos,
		YPos:         input.YPos,
		IconType:     lore.NormalizeIcon(input.IconType),
	}
	if err := s.repo.Create(ctx, pin); err != nil {
		s.recordError(logrus.Fields{"lore_id": input.LoreID}, err, "creating pin")
		return nil, err
	}
	return pin, nil
}

// CreateWithEntry drops a pin on the map and creates the lore entry it opens
// in the same transaction.
func (s *service) CreateWithEntry(ctx context.Context, campaignID uint, input EntryPinInput, v viewer.Context) (*Pin, error) {
	if !v.IsDM {
		return nil, ErrNotDM
	}
	if !InBounds(input.XPos, input.YPos) {
		return nil, ErrOutOfBounds
	}
	if input.Title == "" {
		return nil, lore.ErrTitleRequired
	}

	icon := lore.NormalizeIcon(input.IconType)
	entry := &lore.Entry{
		CampaignID: campaignID,
		ParentID:   input.ParentLoreID,
		Title:      input.Title,
		Content:    input.Content,
		IsPublic:   input.IsPublic,
		IconType:   icon,
	}
	pin := &Pin{
		ParentLoreID: input.ParentLoreID,
		XPos:         input.XPos,
		YPos:         input.YPos,
		IconType:     icon,
	}
	if err := s.repo.CreateWithEntry(ctx, entry, pin); err != nil {
		s.recordError(logrus.Fields{"title": input.Title}, err, "creating pin with entry")
		return nil, err
	}
	pin.Lore = entry
	return pin, nil
}

// Move repositions a pin on its map surface.
func (s *service) Move(ctx context.Context, campaignID, id uint, x, y float64, v viewer.Context) (*Pin, error) {
	if !v.IsDM {
		return nil, ErrNotDM
	}
	if !InBounds(x, y) {
		return nil, ErrOutOfBounds
	}

	pin, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"pin_id": id}, err, "fetching pin for move")
		return nil, err
	}
	if pin == nil || pin.CampaignID != campaignID {
		return nil, ErrPinNotFound
	}

	pin.XPos = x
	pin.YPos = y
	if err := s.repo.Update(ctx, pin); err != nil {
		s.recordError(logrus.Fields{"pin_id": id}, err, "moving pin")
		return nil, err
	}
	return pin, nil
}

func (s *service) Delete(ctx context.Context, campaignID, id uint, v viewer.Context) error {
	if !v.IsDM {
		return ErrNotDM
	}

	pin, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"pin_id": id}, err, "fetching pin for delete")
		return err
	}
	if pin == nil || pin.CampaignID != campaignID {
		return ErrPinNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.recordError(logrus.Fields{"pin_id": id}, err, "deleting pin")
		return err
	}
	return nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}
	if s.logger != nil {
		s.logger.WithFields(fields).WithError(err).Error(message)
	}
	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
