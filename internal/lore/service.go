package lore

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/viewer"
)

// Service defines higher-level lore operations built on top of the repository
// and the pure hierarchy helpers.
type Service interface {
	Entries(ctx context.Context, campaignID uint, v viewer.Context) ([]Entry, error)
	Get(ctx context.Context, id uint, v viewer.Context) (*Entry, error)
	Tree(ctx context.Context, campaignID uint, search string, v viewer.Context) ([]Node, error)
	MapContext(ctx context.Context, campaignID uint, scopeID *uint, v viewer.Context) (*Entry, error)
	Mentions(ctx context.Context, campaignID uint, text string, v viewer.Context) ([]Segment, error)
	Suggest(ctx context.Context, campaignID uint, filter string, v viewer.Context) ([]Entry, error)
	Create(ctx context.Context, campaignID uint, input EntryInput, parentID *uint, v viewer.Context) (*Entry, error)
	Update(ctx context.Context, campaignID, id uint, input EntryInput, decision CascadeDecision, v viewer.Context) (*Entry, error)
	Delete(ctx context.Context, campaignID, id uint, v viewer.Context) error
}

// EntryInput carries the editable fields of a lore entry.
type EntryInput struct {
	Title       string
	Content     string
	IsPublic    bool
	ImageURL    string
	MapImageURL string
	IconType    string
}

// CascadeDecision resolves a pending visibility cascade.
type CascadeDecision string

const (
	// DecisionNone means the caller has not answered the cascade prompt.
	DecisionNone CascadeDecision = ""
	// DecisionOnly applies the visibility change to the edited entry alone.
	DecisionOnly CascadeDecision = "only"
	// DecisionCascade hides the edited entry and its full descendant subtree.
	DecisionCascade CascadeDecision = "cascade"
)

var (
	// ErrEntryNotFound indicates the requested entry does not exist or is
	// hidden from the viewer.
	ErrEntryNotFound = eris.New("lore entry not found")
	// ErrNotDM indicates a mutation attempted by a viewer without DM rights.
	ErrNotDM = eris.New("only the campaign DM can modify lore")
	// ErrTitleRequired indicates a missing or blank entry title.
	ErrTitleRequired = eris.New("entry title is required")
	// ErrInvalidIcon indicates an icon tag outside the fixed vocabulary.
	ErrInvalidIcon = eris.New("unknown icon type")
	// ErrInvalidParent indicates a parent outside the entry's campaign.
	ErrInvalidParent = eris.New("parent entry must exist in the same campaign")
	// ErrCascadeDecisionRequired indicates a privacy-narrowing edit on an
	// entry with children that the caller has not confirmed yet.
	ErrCascadeDecisionRequired = eris.New("visibility cascade decision required")
)

// PinSyncer propagates entry icon edits to the map pins referencing the entry.
type PinSyncer interface {
	SyncIcon(ctx context.Context, loreID uint, iconType string) error
}

type service struct {
	repo      Repository
	pins      PinSyncer
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the lore service with its dependencies. The pin syncer is
// optional; without it icon edits simply do not propagate to pins.
func NewService(repo Repository, pins PinSyncer, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("lore repository is required")
	}

	return &service{repo: repo, pins: pins, logger: logger, sentryHub: hub}, nil
}

func (s *service) Entries(ctx context.Context, campaignID uint, v viewer.Context) ([]Entry, error) {
	entries, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing entries")
		return nil, err
	}

	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.VisibleTo(v) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

func (s *service) Get(ctx context.Context, id uint, v viewer.Context) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"entry_id": id}, err, "fetching entry")
		return nil, err
	}
	if entry == nil || !entry.VisibleTo(v) {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

func (s *service) Tree(ctx context.Context, campaignID uint, search string, v viewer.Context) ([]Node, error) {
	entries, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing entries for tree")
		return nil, err
	}

	nodes, err := BuildTree(entries, search, v)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "building lore tree")
		return nil, err
	}
	return nodes, nil
}

func (s *service) MapContext(ctx context.Context, campaignID uint, scopeID *uint, v viewer.Context) (*Entry, error) {
	if scopeID == nil {
		return nil, nil
	}

	entries, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing entries for map context")
		return nil, err
	}

	var scope *Entry
	for i := range entries {
		if entries[i].ID == *scopeID {
			scope = &entries[i]
			break
		}
	}
	if scope == nil {
		return nil, ErrEntryNotFound
	}

	resolved, err := ResolveMapContext(scope, entries, v)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID, "scope_id": *scopeID}, err, "resolving map context")
		return nil, err
	}
	return resolved, nil
}

func (s *service) Mentions(ctx context.Context, campaignID uint, text string, v viewer.Context) ([]Segment, error) {
	entries, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing entries for mentions")
		return nil, err
	}
	return ResolveMentions(text, entries, v), nil
}

func (s *service) Suggest(ctx context.Context, campaignID uint, filter string, v viewer.Context) ([]Entry, error) {
	entries, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing entries for suggestions")
		return nil, err
	}
	return SuggestMentions(filter, entries, v), nil
}

func (s *service) Create(ctx context.Context, campaignID uint, input EntryInput, parentID *uint, v viewer.Context) (*Entry, error) {
	if !v.IsDM {
		return nil, ErrNotDM
	}
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.repo.GetByID(ctx, *parentID)
		if err != nil {
			s.recordError(logrus.Fields{"parent_id": *parentID}, err, "validating parent entry")
			return nil, err
		}
		if parent == nil || parent.CampaignID != campaignID {
			return nil, ErrInvalidParent
		}
	}

	entry := &Entry{
		CampaignID:  campaignID,
		ParentID:    parentID,
		Title:       input.Title,
		Content:     input.Content,
		IsPublic:    input.IsPublic,
		ImageURL:    input.ImageURL,
		MapImageURL: input.MapImageURL,
		IconType:    input.IconType,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.recordError(logrus.Fields{"title": input.Title}, err, "creating entry")
		return nil, err
	}

	return entry, nil
}

// Update applies an edit to an entry. A public-to-private flip on an entry
// with direct children is a confirmation gate: without a decision the edit is
// rejected with ErrCascadeDecisionRequired and nothing is written. The
// confirmed cascade updates the entry first and then hides the full
// descendant closure in one bulk write.
func (s *service) Update(ctx context.Context, campaignID, id uint, input EntryInput, decision CascadeDecision, v viewer.Context) (*Entry, error) {
	if !v.IsDM {
		return nil, ErrNotDM
	}
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"entry_id": id}, err, "fetching entry for update")
		return nil, err
	}
	if entry == nil || entry.CampaignID != campaignID {
		return nil, ErrEntryNotFound
	}

	siblings, err := s.repo.ListByCampaign(ctx, entry.CampaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": entry.CampaignID}, err, "listing entries for cascade check")
		return nil, err
	}

	var controller CascadeController
	if controller.Observe(*entry, input.IsPublic, siblings) && decision == DecisionNone {
		return nil, ErrCascadeDecisionRequired
	}

	iconChanged := entry.IconType != input.IconType

	entry.Title = input.Title
	entry.Content = input.Content
	entry.IsPublic = input.IsPublic
	entry.ImageURL = input.ImageURL
	entry.MapImageURL = input.MapImageURL
	entry.IconType = input.IconType

	if err := s.repo.Update(ctx, entry); err != nil {
		s.recordError(logrus.Fields{"entry_id": id}, err, "updating entry")
		return nil, err
	}

	if iconChanged && s.pins != nil {
		if err := s.pins.SyncIcon(ctx, entry.ID, entry.IconType); err != nil {
			s.recordError(logrus.Fields{"entry_id": id}, err, "syncing pin icons")
			return nil, err
		}
	}

	if controller.State() == CascadePendingDecision && decision == DecisionCascade {
		descendants, err := controller.ResolveCascade(siblings)
		if err != nil {
			s.recordError(logrus.Fields{"entry_id": id}, err, "collecting cascade descendants")
			return nil, err
		}
		if len(descendants) > 0 {
			if err := s.repo.SetPublicBulk(ctx, descendants, false); err != nil {
				s.recordError(logrus.Fields{"entry_id": id, "count": len(descendants)}, err, "cascading visibility")
				return nil, err
			}
		}
	} else {
		controller.ResolveOnly()
	}

	return entry, nil
}

func (s *service) Delete(ctx context.Context, campaignID, id uint, v viewer.Context) error {
	if !v.IsDM {
		return ErrNotDM
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"entry_id": id}, err, "fetching entry for delete")
		return err
	}
	if entry == nil || entry.CampaignID != campaignID {
		return ErrEntryNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.recordError(logrus.Fields{"entry_id": id}, err, "deleting entry")
		return err
	}
	return nil
}

func validateInput(input *EntryInput) error {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return ErrTitleRequired
	}

	if input.IconType == "" {
		input.IconType = DefaultIcon
	}
	if !ValidIcon(input.IconType) {
		return ErrInvalidIcon
	}
	return nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
