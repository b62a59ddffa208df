package campaign

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/viewer"
)

// Access is the outcome of the campaign gate.
type Access int

const (
	// AccessDenied means the user is neither the DM nor a player of the
	// campaign.
	AccessDenied Access = iota
	// AccessGranted means the user may enter the campaign.
	AccessGranted
)

// Grant describes how a user enters a campaign: as the owning DM or as a
// player through one of their characters.
type Grant struct {
	Access      Access
	IsDM        bool
	CharacterID uint
}

// Viewer converts the grant into the viewer context threaded through every
// read below the gate.
func (g Grant) Viewer(userID uint) viewer.Context {
	if g.IsDM {
		return viewer.DM(userID)
	}
	return viewer.Player(userID)
}

// CharacterDirectory is the slice of the character store the gate needs:
// whether a user already plays in a campaign, and linking a character on
// join. Defined here so the campaign package does not depend on the character
// package.
type CharacterDirectory interface {
	FindByUserAndCampaign(ctx context.Context, userID, campaignID uint) (characterID uint, ok bool, err error)
	AssignCampaign(ctx context.Context, userID, characterID, campaignID uint) error
}

// CampaignInput carries the editable fields of a campaign.
type CampaignInput struct {
	Name        string
	Description string
	ImageURL    string
	MapImageURL string
}

var (
	// ErrCampaignNotFound indicates the requested campaign does not exist.
	ErrCampaignNotFound = eris.New("campaign not found")
	// ErrNotOwner indicates a mutation attempted by someone other than the
	// campaign's DM.
	ErrNotOwner = eris.New("only the campaign owner can do that")
	// ErrNameRequired indicates a missing or blank campaign name.
	ErrNameRequired = eris.New("campaign name is required")
	// ErrInvalidInviteCode indicates a join attempt with a code no campaign
	// carries.
	ErrInvalidInviteCode = eris.New("invite code does not match any campaign")
	// ErrCharacterRequired indicates a player join without a character to
	// link.
	ErrCharacterRequired = eris.New("joining a campaign requires a character")
)

// Service exposes campaign management and the access gate.
type Service interface {
	List(ctx context.Context, userID uint) ([]Campaign, error)
	Get(ctx context.Context, id uint) (*Campaign, error)
	Create(ctx context.Context, userID uint, input CampaignInput) (*Campaign, error)
	Update(ctx context.Context, userID, id uint, input CampaignInput) (*Campaign, error)
	Delete(ctx context.Context, userID, id uint) error
	Join(ctx context.Context, userID uint, inviteCode string, characterID uint) (*Campaign, error)
	CheckAccess(ctx context.Context, userID, campaignID uint) (Grant, error)
}

type service struct {
	repo       Repository
	characters CharacterDirectory
	logger     *logrus.Logger
	sentryHub  *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the campaign service. The character directory is required:
// without it neither joins nor player access checks can work.
func NewService(repo Repository, characters CharacterDirectory, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("campaign repository is required")
	}
	if characters == nil {
		return nil, eris.New("character directory is required")
	}

	return &service{repo: repo, characters: characters, logger: logger, sentryHub: hub}, nil
}

func (s *service) List(ctx context.Context, userID uint) ([]Campaign, error) {
	campaigns, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		s.recordError(logrus.Fields{"user_id": userID}, err, "listing campaigns")
		return nil, err
	}
	return campaigns, nil
}

func (s *service) Get(ctx context.Context, id uint) (*Campaign, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": id}, err, "fetching campaign")
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *service) Create(ctx context.Context, userID uint, input CampaignInput) (*Campaign, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	campaign := &Campaign{
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		MapImageURL: input.MapImageURL,
		InviteCode:  NewInviteCode(),
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		s.recordError(logrus.Fields{"name": input.Name}, err, "creating campaign")
		return nil, err
	}
	return campaign, nil
}

func (s *service) Update(ctx context.Context, userID, id uint, input CampaignInput) (*Campaign, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.OwnedBy(userID) {
		return nil, ErrNotOwner
	}

	campaign.Name = input.Name
	campaign.Description = input.Description
	campaign.ImageURL = input.ImageURL
	campaign.MapImageURL = input.MapImageURL

	if err := s.repo.Update(ctx, campaign); err != nil {
		s.recordError(logrus.Fields{"campaign_id": id}, err, "updating campaign")
		return nil, err
	}
	return campaign, nil
}

func (s *service) Delete(ctx context.Context, userID, id uint) error {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !campaign.OwnedBy(userID) {
		return ErrNotOwner
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.recordError(logrus.Fields{"campaign_id": id}, err, "deleting campaign")
		return err
	}
	return nil
}

// Join admits a player into a campaign through its invite code, linking the
// given character to the campaign. The DM never joins their own campaign;
// trying to is treated as a no-op grant.
func (s *service) Join(ctx context.Context, userID uint, inviteCode string, characterID uint) (*Campaign, error) {
	code := strings.TrimSpace(inviteCode)
	if code == "" {
		return nil, ErrInvalidInviteCode
	}

	campaign, err := s.repo.GetByInviteCode(ctx, code)
	if err != nil {
		s.recordError(logrus.Fields{}, err, "resolving invite code")
		return nil, err
	}
	if campaign == nil {
		return nil, ErrInvalidInviteCode
	}

	if campaign.OwnedBy(userID) {
		return campaign, nil
	}

	if characterID == 0 {
		return nil, ErrCharacterRequired
	}
	if err := s.characters.AssignCampaign(ctx, userID, characterID, campaign.ID); err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaign.ID, "character_id": characterID}, err, "linking character to campaign")
		return nil, err
	}
	return campaign, nil
}

// CheckAccess decides how (and whether) a user may enter a campaign: the
// owner enters as DM, a user with a character in the campaign enters as a
// player, anyone else is denied.
func (s *service) CheckAccess(ctx context.Context, userID, campaignID uint) (Grant, error) {
	campaign, err := s.repo.GetByID(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "fetching campaign for access check")
		return Grant{}, err
	}
	if campaign == nil {
		return Grant{}, ErrCampaignNotFound
	}

	if campaign.OwnedBy(userID) {
		return Grant{Access: AccessGranted, IsDM: true}, nil
	}

	characterID, ok, err := s.characters.FindByUserAndCampaign(ctx, userID, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID, "user_id": userID}, err, "checking campaign membership")
		return Grant{}, err
	}
	if !ok {
		return Grant{Access: AccessDenied}, nil
	}
	return Grant{Access: AccessGranted, CharacterID: characterID}, nil
}

func validateInput(input *CampaignInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return ErrNameRequired
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
