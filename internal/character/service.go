package character

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// mirrorKey is the settings key the character list is mirrored under when the
// record store runs in fallback mode.
const mirrorKey = "opentales_characters"

// SettingsStore is the slice of the key-value store the mirror needs.
type SettingsStore interface {
	Set(ctx context.Context, key string, value any) error
}

// CharacterInput carries the fields of a new character sheet.
type CharacterInput struct {
	Name      string
	Race      string
	Class     string
	Level     int
	HP        int
	MaxHP     int
	AC        int
	Str       int
	Dex       int
	Con       int
	Int       int
	Wis       int
	Cha       int
	Inventory string
	Notes     string
	ImageURL  string
}

var (
	// ErrCharacterNotFound indicates the requested character does not exist.
	ErrCharacterNotFound = eris.New("character not found")
	// ErrNotSheetOwner indicates a sheet mutation by someone who does not
	// own the character.
	ErrNotSheetOwner = eris.New("only the character's owner can edit the sheet")
	// ErrNameRequired indicates a missing or blank character name.
	ErrNameRequired = eris.New("character name is required")
	// ErrUnknownField indicates a patch touching a column outside the sheet.
	ErrUnknownField = eris.New("unknown character field")
)

// patchableFields whitelists the columns the debounced editor may touch.
var patchableFields = map[string]struct{}{
	"name": {}, "race": {}, "class": {}, "level": {},
	"hp": {}, "max_hp": {}, "ac": {},
	"str": {}, "dex": {}, "con": {}, "int": {}, "wis": {}, "cha": {},
	"inventory": {}, "notes": {}, "image_url": {},
}

// Service exposes character sheet management. Patch goes through the
// coalescer; Get and List overlay pending edits so readers always see the
// latest state.
type Service interface {
	List(ctx context.Context, userID uint) ([]Character, error)
	ListByCampaign(ctx context.Context, campaignID uint) ([]Character, error)
	Get(ctx context.Context, id, userID uint) (*Character, error)
	Create(ctx context.Context, userID uint, input CharacterInput) (*Character, error)
	Patch(ctx context.Context, id, userID uint, updates map[string]any) (*Character, error)
	Delete(ctx context.Context, id, userID uint) error
	Close(ctx context.Context) error

	// Directory hooks consumed by the campaign gate.
	FindByUserAndCampaign(ctx context.Context, userID, campaignID uint) (uint, bool, error)
	AssignCampaign(ctx context.Context, userID, characterID, campaignID uint) error
}

type service struct {
	repo      Repository
	coalescer *Coalescer
	mirror    SettingsStore
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the character service. The mirror is optional and only set
// when the record store runs in fallback mode; quiet is the coalescer's
// debounce window.
func NewService(repo Repository, quiet time.Duration, mirror SettingsStore, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("character repository is required")
	}

	s := &service{repo: repo, mirror: mirror, logger: logger, sentryHub: hub}
	coalescer, err := NewCoalescer(quiet, s.flushBatch, logger)
	if err != nil {
		return nil, err
	}
	s.coalescer = coalescer
	return s, nil
}

func (s *service) List(ctx context.Context, userID uint) ([]Character, error) {
	characters, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.recordError(logrus.Fields{"user_id": userID}, err, "listing characters")
		return nil, err
	}
	for i := range characters {
		s.overlay(&characters[i])
	}
	return characters, nil
}

func (s *service) ListByCampaign(ctx context.Context, campaignID uint) ([]Character, error) {
	characters, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing campaign characters")
		return nil, err
	}
	for i := range characters {
		s.overlay(&characters[i])
	}
	return characters, nil
}

func (s *service) Get(ctx context.Context, id, userID uint) (*Character, error) {
	character, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"character_id": id}, err, "fetching character")
		return nil, err
	}
	if character == nil || !character.OwnedBy(userID) {
		return nil, ErrCharacterNotFound
	}
	s.overlay(character)
	return character, nil
}

func (s *service) Create(ctx context.Context, userID uint, input CharacterInput) (*Character, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if input.Level < 1 {
		input.Level = 1
	}

	character := &Character{
		UserID: userID,
		Name:   input.Name, Race: input.Race, Class: input.Class,
		Level: input.Level, HP: input.HP, MaxHP: input.MaxHP, AC: input.AC,
		Str: orDefault(input.Str), Dex: orDefault(input.Dex), Con: orDefault(input.Con),
		Int: orDefault(input.Int), Wis: orDefault(input.Wis), Cha: orDefault(input.Cha),
		Inventory: input.Inventory, Notes: input.Notes, ImageURL: input.ImageURL,
	}
	if err := s.repo.Create(ctx, character); err != nil {
		s.recordError(logrus.Fields{"name": input.Name}, err, "creating character")
		return nil, err
	}

	s.mirrorCharacters(ctx, userID)
	return character, nil
}

// Patch applies a partial sheet edit. The write is coalesced: it lands in the
// store after the quiet period, but the returned character already reflects
// it.
func (s *service) Patch(ctx context.Context, id, userID uint, updates map[string]any) (*Character, error) {
	character, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"character_id": id}, err, "fetching character for patch")
		return nil, err
	}
	if character == nil {
		return nil, ErrCharacterNotFound
	}
	if !character.OwnedBy(userID) {
		return nil, ErrNotSheetOwner
	}

	for field := range updates {
		if _, ok := patchableFields[field]; !ok {
			return nil, eris.Wrapf(ErrUnknownField, "field %q", field)
		}
	}

	if err := s.coalescer.Apply(ctx, id, updates); err != nil {
		s.recordError(logrus.Fields{"character_id": id}, err, "applying character patch")
		return nil, err
	}

	s.overlay(character)
	return character, nil
}

func (s *service) Delete(ctx context.Context, id, userID uint) error {
	character, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"character_id": id}, err, "fetching character for delete")
		return err
	}
	if character == nil {
		return ErrCharacterNotFound
	}
	if !character.OwnedBy(userID) {
		return ErrNotSheetOwner
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.recordError(logrus.Fields{"character_id": id}, err, "deleting character")
		return err
	}

	s.mirrorCharacters(ctx, userID)
	return nil
}

// Close drains the coalescer, flushing every pending sheet edit.
func (s *service) Close(ctx context.Context) error {
	return s.coalescer.Close(ctx)
}

// FindByUserAndCampaign reports the character a user plays in a campaign.
func (s *service) FindByUserAndCampaign(ctx context.Context, userID, campaignID uint) (uint, bool, error) {
	characters, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "checking campaign membership")
		return 0, false, err
	}
	for _, c := range characters {
		if c.UserID == userID {
			return c.ID, true, nil
		}
	}
	return 0, false, nil
}

// AssignCampaign links a character to the campaign it just joined. Only the
// character's owner may bring it into a campaign.
func (s *service) AssignCampaign(ctx context.Context, userID, characterID, campaignID uint) error {
	character, err := s.repo.GetByID(ctx, characterID)
	if err != nil {
		s.recordError(logrus.Fields{"character_id": characterID}, err, "fetching character for campaign link")
		return err
	}
	if character == nil {
		return ErrCharacterNotFound
	}
	if !character.OwnedBy(userID) {
		return ErrNotSheetOwner
	}

	character.CampaignID = &campaignID
	if err := s.repo.Update(ctx, character); err != nil {
		s.recordError(logrus.Fields{"character_id": characterID}, err, "linking character to campaign")
		return err
	}
	return nil
}

// flushBatch is the coalescer's sink: it writes one batch to the store and
// refreshes the fallback mirror.
func (s *service) flushBatch(ctx context.Context, id uint, updates map[string]any) error {
	if err := s.repo.UpdateFields(ctx, id, updates); err != nil {
		return err
	}

	if s.mirror != nil {
		if character, err := s.repo.GetByID(ctx, id); err == nil && character != nil {
			s.mirrorCharacters(ctx, character.UserID)
		}
	}
	return nil
}

// overlay folds the character's pending coalescer updates into the loaded
// row.
func (s *service) overlay(c *Character) {
	for field, value := range s.coalescer.Pending(c.ID) {
		applyField(c, field, value)
	}
}

// mirrorCharacters snapshots the user's character list into the key-value
// fallback. Mirror failures are logged, never surfaced: the store write
// already succeeded.
func (s *service) mirrorCharacters(ctx context.Context, userID uint) {
	if s.mirror == nil {
		return
	}

	characters, err := s.repo.ListByUser(ctx, userID)
	if err == nil {
		err = s.mirror.Set(ctx, mirrorKey, characters)
	}
	if err != nil && s.logger != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID}).
			WithError(err).Warn("character mirror update failed")
	}
}

func applyField(c *Character, field string, value any) {
	switch field {
	case "name":
		setString(&c.Name, value)
	case "race":
		setString(&c.Race, value)
	case "class":
		setString(&c.Class, value)
	case "inventory":
		setString(&c.Inventory, value)
	case "notes":
		setString(&c.Notes, value)
	case "image_url":
		setString(&c.ImageURL, value)
	case "level":
		setInt(&c.Level, value)
	case "hp":
		setInt(&c.HP, value)
	case "max_hp":
		setInt(&c.MaxHP, value)
	case "ac":
		setInt(&c.AC, value)
	case "str":
		setInt(&c.Str, value)
	case "dex":
		setInt(&c.Dex, value)
	case "con":
		setInt(&c.Con, value)
	case "int":
		setInt(&c.Int, value)
	case "wis":
		setInt(&c.Wis, value)
	case "cha":
		setInt(&c.Cha, value)
	}
}

func setString(dst *string, value any) {
	if v, ok := value.(string); ok {
		*dst = v
	}
}

func setInt(dst *int, value any) {
	switch v := value.(type) {
	case int:
		*dst = v
	case int64:
		*dst = int(v)
	case float64:
		*dst = int(v)
	}
}

func orDefault(score int) int {
	if score == 0 {
		return 10
	}
	return score
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
