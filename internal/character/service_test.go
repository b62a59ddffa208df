package character

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
)

type stubRepository struct {
	mu         sync.Mutex
	characters map[uint]*Character
	nextID     uint
}

var _ Repository = (*stubRepository)(nil)

func newStubRepository(characters ...Character) *stubRepository {
	repo := &stubRepository{characters: make(map[uint]*Character), nextID: 1}
	for i := range characters {
		c := characters[i]
		repo.characters[c.ID] = &c
		if c.ID >= repo.nextID {
			repo.nextID = c.ID + 1
		}
	}
	return repo
}

func (r *stubRepository) ListByUser(_ context.Context, userID uint) ([]Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Character
	for id := uint(1); id < r.nextID; id++ {
		if c, ok := r.characters[id]; ok && c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubRepository) ListByCampaign(_ context.Context, campaignID uint) ([]Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Character
	for id := uint(1); id < r.nextID; id++ {
		if c, ok := r.characters[id]; ok && c.CampaignID != nil && *c.CampaignID == campaignID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubRepository) GetByID(_ context.Context, id uint) (*Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.characters[id]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (r *stubRepository) Create(_ context.Context, character *Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	character.ID = r.nextID
	r.nextID++
	clone := *character
	r.characters[character.ID] = &clone
	return nil
}

func (r *stubRepository) Update(_ context.Context, character *Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *character
	r.characters[character.ID] = &clone
	return nil
}

func (r *stubRepository) UpdateFields(_ context.Context, id uint, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.characters[id]
	if !ok {
		return eris.New("no such character")
	}
	for field, value := range updates {
		applyField(c, field, value)
	}
	return nil
}

func (r *stubRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.characters, id)
	return nil
}

type stubSettings struct {
	mu   sync.Mutex
	keys []string
	last any
}

func (s *stubSettings) Set(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	s.last = value
	return nil
}

func (s *stubSettings) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func testCharacter(id, userID uint, name string) Character {
	return Character{
		Model:  gorm.Model{ID: id},
		UserID: userID,
		Name:   name,
		Level:  1,
		Str:    10, Dex: 10, Con: 10, Int: 10, Wis: 10, Cha: 10,
	}
}

func newService(t *testing.T, repo Repository, quiet time.Duration, mirror SettingsStore) Service {
	t.Helper()

	svc, err := NewService(repo, quiet, mirror, quietLogger(), nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestModifierUsesFloor(t *testing.T) {
	t.Parallel()

	cases := map[int]int{3: -4, 8: -1, 9: -1, 10: 0, 11: 0, 12: 1, 15: 2, 20: 5}
	for score, want := range cases {
		if got := Modifier(score); got != want {
			t.Fatalf("Modifier(%d) = %d, want %d", score, got, want)
		}
	}
}

func TestCreateDefaultsAbilityScores(t *testing.T) {
	t.Parallel()

	svc := newService(t, newStubRepository(), time.Minute, nil)

	created, err := svc.Create(context.Background(), 7, CharacterInput{Name: "Ari"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Str != 10 || created.Cha != 10 {
		t.Fatalf("expected ability scores to default to 10, got %+v", created)
	}
	if created.Level != 1 {
		t.Fatalf("expected level to default to 1, got %d", created.Level)
	}

	if _, err := svc.Create(context.Background(), 7, CharacterInput{Name: "  "}); !eris.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestPatchOverlaysBeforeFlush(t *testing.T) {
	t.Parallel()

	repo := newStubRepository(testCharacter(1, 7, "Ari"))
	svc := newService(t, repo, time.Minute, nil)

	patched, err := svc.Patch(context.Background(), 1, 7, map[string]any{"hp": 12, "name": "Arannis"})
	if err != nil {
		t.Fatalf("Patch returned error: %v", err)
	}
	if patched.HP != 12 || patched.Name != "Arannis" {
		t.Fatalf("expected the patch reflected immediately, got %+v", patched)
	}

	// The store still holds the old row until the quiet period passes.
	stored, _ := repo.GetByID(context.Background(), 1)
	if stored.Name != "Ari" {
		t.Fatalf("expected the store untouched before the flush, got %q", stored.Name)
	}

	// A fresh read overlays the pending edit too.
	got, err := svc.Get(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Name != "Arannis" {
		t.Fatalf("expected Get to overlay pending edits, got %q", got.Name)
	}
}

func TestPatchFlushReachesStore(t *testing.T) {
	t.Parallel()

	repo := newStubRepository(testCharacter(1, 7, "Ari"))
	svc := newService(t, repo, 5*time.Millisecond, nil)

	if _, err := svc.Patch(context.Background(), 1, 7, map[string]any{"hp": 12}); err != nil {
		t.Fatalf("Patch returned error: %v", err)
	}

	waitFor(t, func() bool {
		stored, _ := repo.GetByID(context.Background(), 1)
		return stored.HP == 12
	})
}

func TestPatchValidatesFieldsAndOwnership(t *testing.T) {
	t.Parallel()

	repo := newStubRepository(testCharacter(1, 7, "Ari"))
	svc := newService(t, repo, time.Minute, nil)

	if _, err := svc.Patch(context.Background(), 1, 7, map[string]any{"alignment": "CN"}); !eris.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := svc.Patch(context.Background(), 1, 99, map[string]any{"hp": 1}); !eris.Is(err, ErrNotSheetOwner) {
		t.Fatalf("expected ErrNotSheetOwner, got %v", err)
	}
	if _, err := svc.Patch(context.Background(), 404, 7, map[string]any{"hp": 1}); !eris.Is(err, ErrCharacterNotFound) {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}
}

func TestCloseDrainsPendingPatches(t *testing.T) {
	t.Parallel()

	repo := newStubRepository(testCharacter(1, 7, "Ari"))
	svc := newService(t, repo, time.Hour, nil)

	if _, err := svc.Patch(context.Background(), 1, 7, map[string]any{"notes": "final"}); err != nil {
		t.Fatalf("Patch returned error: %v", err)
	}
	if err := svc.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), 1)
	if stored.Notes != "final" {
		t.Fatalf("expected Close to flush the pending patch, got %q", stored.Notes)
	}
}

func TestMirrorWrittenInFallbackMode(t *testing.T) {
	t.Parallel()

	repo := newStubRepository()
	mirror := &stubSettings{}
	svc := newService(t, repo, 5*time.Millisecond, mirror)

	created, err := svc.Create(context.Background(), 7, CharacterInput{Name: "Ari"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if mirror.count() != 1 || mirror.keys[0] != "opentales_characters" {
		t.Fatalf("expected a mirror write under opentales_characters, got %v", mirror.keys)
	}

	if _, err := svc.Patch(context.Background(), created.ID, 7, map[string]any{"hp": 9}); err != nil {
		t.Fatalf("Patch returned error: %v", err)
	}
	waitFor(t, func() bool { return mirror.count() >= 2 })
}

func TestDirectoryHooks(t *testing.T) {
	t.Parallel()

	repo := newStubRepository(testCharacter(1, 7, "Ari"))
	svc := newService(t, repo, time.Minute, nil)
	ctx := context.Background()

	if _, ok, err := svc.FindByUserAndCampaign(ctx, 7, 3); err != nil || ok {
		t.Fatalf("expected no membership before the join, got ok=%v err=%v", ok, err)
	}

	// Only the owner may bring the character into a campaign.
	if err := svc.AssignCampaign(ctx, 8, 1, 3); !eris.Is(err, ErrNotSheetOwner) {
		t.Fatalf("expected ErrNotSheetOwner for a foreign character, got %v", err)
	}
	if _, ok, _ := svc.FindByUserAndCampaign(ctx, 7, 3); ok {
		t.Fatalf("a rejected link must not be written")
	}

	if err := svc.AssignCampaign(ctx, 7, 1, 3); err != nil {
		t.Fatalf("AssignCampaign returned error: %v", err)
	}

	id, ok, err := svc.FindByUserAndCampaign(ctx, 7, 3)
	if err != nil || !ok || id != 1 {
		t.Fatalf("expected character 1 as member, got id=%d ok=%v err=%v", id, ok, err)
	}

	if err := svc.AssignCampaign(ctx, 7, 404, 3); !eris.Is(err, ErrCharacterNotFound) {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}
}
