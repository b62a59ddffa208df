package http

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"opentales/app/internal/auth"
	"opentales/app/internal/campaign"
	"opentales/app/internal/character"
	"opentales/app/internal/lore"
	"opentales/app/internal/pin"
	"opentales/app/internal/session"
	"opentales/app/internal/viewer"
)

type viewerContext = viewer.Context

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testStubs())

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"fallback"`) {
		t.Fatalf("expected fallback mode in body, got %q", rec.Body.String())
	}
}

func TestRoutesRequireIdentityInHostedMode(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	srv := newTestServerHosted(t, stubs)

	req := httptest.NewRequest("GET", "/campaigns", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 401 {
		t.Fatalf("expected status 401 without a bearer token, got %d", rec.Code)
	}
}

func TestBearerTokenResolvesUser(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	srv := newTestServerHosted(t, stubs)

	req := httptest.NewRequest("GET", "/campaigns", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200 with a valid token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFallbackModeActsAsGuest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testStubs())

	req := httptest.NewRequest("GET", "/campaigns", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected guest access in fallback mode, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCampaignGateRejectsStrangers(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	stubs.campaigns.grant = campaign.Grant{Access: campaign.AccessDenied}
	srv := newTestServer(t, stubs)

	req := httptest.NewRequest("GET", "/campaigns/5/lore", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 403 {
		t.Fatalf("expected status 403 for a non-member, got %d", rec.Code)
	}
}

func TestLoreTreeRouteReturnsForest(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	stubs.lore.tree = []lore.Node{{Entry: lore.Entry{Model: gorm.Model{ID: 1}, Title: "Emberfall"}}}
	srv := newTestServer(t, stubs)

	req := httptest.NewRequest("GET", "/campaigns/5/lore/tree?search=ember", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Emberfall") {
		t.Fatalf("expected tree in body, got %q", rec.Body.String())
	}
	if stubs.lore.treeSearch != "ember" {
		t.Fatalf("expected search term forwarded, got %q", stubs.lore.treeSearch)
	}
}

func TestLoreUpdateSurfacesCascadePrompt(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	stubs.lore.updateErr = lore.ErrCascadeDecisionRequired
	srv := newTestServer(t, stubs)

	req := httptest.NewRequest("PATCH", "/campaigns/5/lore/2", strings.NewReader(`{"title":"Keep","is_public":false}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 409 {
		t.Fatalf("expected status 409 for an unanswered cascade prompt, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoreCreateRouteAcceptsBody(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	srv := newTestServer(t, stubs)

	req := httptest.NewRequest("POST", "/campaigns/5/lore",
		strings.NewReader(`{"title":"The Vault","content":"Sealed since the war.","is_public":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "The Vault") {
		t.Fatalf("expected the created entry echoed, got %q", rec.Body.String())
	}
}

func TestLoreUpdateRouteAcceptsBody(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	srv := newTestServer(t, stubs)

	req := httptest.NewRequest("PATCH", "/campaigns/5/lore/2",
		strings.NewReader(`{"title":"Keep","is_public":false,"decision":"cascade"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Keep") {
		t.Fatalf("expected the updated entry echoed, got %q", rec.Body.String())
	}
	if stubs.lore.updateCampaign != 5 {
		t.Fatalf("expected the path campaign forwarded, got %d", stubs.lore.updateCampaign)
	}
}

func TestMentionsRouteRendersAnchors(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	stubs.lore.segments = []lore.Segment{
		{Text: "visit "},
		{Text: "@Emberfall", Entry: &lore.Entry{Model: gorm.Model{ID: 9}, Title: "Emberfall"}},
	}
	srv := newTestServer(t, stubs)

	req := httptest.NewRequest("POST", "/campaigns/5/lore/mentions", strings.NewReader(`{"text":"visit @Emberfall"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/campaigns/5/lore/9") {
		t.Fatalf("expected mention anchor in body, got %q", rec.Body.String())
	}
}

func TestJoinRouteForwardsInviteCode(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	srv := newTestServer(t, stubs)

	req := httptest.NewRequest("POST", "/campaigns/join", strings.NewReader(`{"invite_code":"AB12CD34","character_id":3}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stubs.campaigns.joinedCode != "AB12CD34" || stubs.campaigns.joinedCharacter != 3 {
		t.Fatalf("expected join forwarded, got code %q character %d",
			stubs.campaigns.joinedCode, stubs.campaigns.joinedCharacter)
	}
}

func TestRateLimiterReturns429(t *testing.T) {
	t.Parallel()

	stubs := testStubs()
	srv := newTestServerWithLimit(t, stubs, RateLimiterSettings{
		RequestsPerSecond: 0.001,
		Burst:             1,
		ClientTTL:         time.Minute,
	})

	first := httptest.NewRecorder()
	srv.ServeHTTP(first, httptest.NewRequest("GET", "/campaigns", nil))
	if first.Code != 200 {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	srv.ServeHTTP(second, httptest.NewRequest("GET", "/campaigns", nil))
	if second.Code != 429 {
		t.Fatalf("expected second request to be limited, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header on the limited response")
	}
}

func TestUploadRouteUnavailableWithoutStorage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, testStubs())

	req := httptest.NewRequest("POST", "/upload", strings.NewReader("ignored"))
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 503 {
		t.Fatalf("expected status 503 without an uploader, got %d", rec.Code)
	}
}

// helper utilities

type serverStubs struct {
	auth       *stubAuthService
	campaigns  *stubCampaignService
	lore       *stubLoreService
	pins       *stubPinService
	characters *stubCharacterService
	sessions   *stubSessionService
}

func testStubs() serverStubs {
	guest := &auth.User{Model: gorm.Model{ID: 1}, Email: auth.GuestEmail}
	return serverStubs{
		auth:       &stubAuthService{user: guest},
		campaigns:  &stubCampaignService{grant: campaign.Grant{Access: campaign.AccessGranted, IsDM: true}},
		lore:       &stubLoreService{},
		pins:       &stubPinService{},
		characters: &stubCharacterService{},
		sessions:   &stubSessionService{},
	}
}

func newTestServer(t *testing.T, stubs serverStubs) *Server {
	t.Helper()
	return buildServer(t, stubs, true, RateLimiterSettings{
		RequestsPerSecond: 100,
		Burst:             100,
		ClientTTL:         time.Minute,
	})
}

func newTestServerHosted(t *testing.T, stubs serverStubs) *Server {
	t.Helper()
	return buildServer(t, stubs, false, RateLimiterSettings{
		RequestsPerSecond: 100,
		Burst:             100,
		ClientTTL:         time.Minute,
	})
}

func newTestServerWithLimit(t *testing.T, stubs serverStubs, settings RateLimiterSettings) *Server {
	t.Helper()
	return buildServer(t, stubs, true, settings)
}

func buildServer(t *testing.T, stubs serverStubs, fallback bool, settings RateLimiterSettings) *Server {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open returned error: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv, err := NewServer(Options{
		Auth:         stubs.auth,
		Campaigns:    stubs.campaigns,
		Lore:         stubs.lore,
		Pins:         stubs.pins,
		Characters:   stubs.characters,
		Sessions:     stubs.sessions,
		Database:     gormDB,
		Logger:       logger,
		RateLimiter:  settings,
		FallbackMode: fallback,
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}

	return srv
}

// stubs

type stubAuthService struct {
	user *auth.User
}

func (s *stubAuthService) SignUp(_ context.Context, _, _, _ string) (*auth.User, string, error) {
	return s.user, "token", nil
}

func (s *stubAuthService) SignIn(_ context.Context, _, _ string) (*auth.User, string, error) {
	return s.user, "token", nil
}

func (s *stubAuthService) UserFromToken(_ context.Context, token string) (*auth.User, error) {
	if token != "good-token" {
		return nil, auth.ErrInvalidToken
	}
	return s.user, nil
}

func (s *stubAuthService) EnsureGuest(_ context.Context) (*auth.User, error) {
	return s.user, nil
}

type stubCampaignService struct {
	grant           campaign.Grant
	joinedCode      string
	joinedCharacter uint
}

func (s *stubCampaignService) List(_ context.Context, _ uint) ([]campaign.Campaign, error) {
	return nil, nil
}

func (s *stubCampaignService) Get(_ context.Context, id uint) (*campaign.Campaign, error) {
	return &campaign.Campaign{Model: gorm.Model{ID: id}, Name: "Test Campaign"}, nil
}

func (s *stubCampaignService) Create(_ context.Context, _ uint, input campaign.CampaignInput) (*campaign.Campaign, error) {
	return &campaign.Campaign{Name: input.Name}, nil
}

func (s *stubCampaignService) Update(_ context.Context, _, id uint, input campaign.CampaignInput) (*campaign.Campaign, error) {
	return &campaign.Campaign{Model: gorm.Model{ID: id}, Name: input.Name}, nil
}

func (s *stubCampaignService) Delete(_ context.Context, _, _ uint) error {
	return nil
}

func (s *stubCampaignService) Join(_ context.Context, _ uint, inviteCode string, characterID uint) (*campaign.Campaign, error) {
	s.joinedCode = inviteCode
	s.joinedCharacter = characterID
	return &campaign.Campaign{Name: "Joined"}, nil
}

func (s *stubCampaignService) CheckAccess(_ context.Context, _, _ uint) (campaign.Grant, error) {
	return s.grant, nil
}

type stubLoreService struct {
	entries        []lore.Entry
	tree           []lore.Node
	treeSearch     string
	segments       []lore.Segment
	updateErr      error
	updateCampaign uint
}

func (s *stubLoreService) Entries(_ context.Context, _ uint, _ viewerContext) ([]lore.Entry, error) {
	return s.entries, nil
}

func (s *stubLoreService) Get(_ context.Context, id uint, _ viewerContext) (*lore.Entry, error) {
	return &lore.Entry{Model: gorm.Model{ID: id}, CampaignID: 5, Title: "Entry"}, nil
}

func (s *stubLoreService) Tree(_ context.Context, _ uint, search string, _ viewerContext) ([]lore.Node, error) {
	s.treeSearch = search
	return s.tree, nil
}

func (s *stubLoreService) MapContext(_ context.Context, _ uint, _ *uint, _ viewerContext) (*lore.Entry, error) {
	return nil, nil
}

func (s *stubLoreService) Mentions(_ context.Context, _ uint, _ string, _ viewerContext) ([]lore.Segment, error) {
	return s.segments, nil
}

func (s *stubLoreService) Suggest(_ context.Context, _ uint, _ string, _ viewerContext) ([]lore.Entry, error) {
	return s.entries, nil
}

func (s *stubLoreService) Create(_ context.Context, campaignID uint, input lore.EntryInput, parentID *uint, _ viewerContext) (*lore.Entry, error) {
	return &lore.Entry{CampaignID: campaignID, ParentID: parentID, Title: input.Title}, nil
}

func (s *stubLoreService) Update(_ context.Context, campaignID, id uint, input lore.EntryInput, _ lore.CascadeDecision, _ viewerContext) (*lore.Entry, error) {
	s.updateCampaign = campaignID
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &lore.Entry{Model: gorm.Model{ID: id}, Title: input.Title}, nil
}

func (s *stubLoreService) Delete(_ context.Context, _, _ uint, _ viewerContext) error {
	return nil
}

type stubPinService struct{}

func (s *stubPinService) List(_ context.Context, _ uint, _ *uint, _ viewerContext) ([]pin.Pin, error) {
	return nil, nil
}

func (s *stubPinService) Badges(_ context.Context, _ uint, _ viewerContext) (map[uint]int, error) {
	return nil, nil
}

func (s *stubPinService) Create(_ context.Context, campaignID uint, input pin.PinInput, _ viewerContext) (*pin.Pin, error) {
	return &pin.Pin{CampaignID: campaignID, LoreID: input.LoreID}, nil
}

func (s *stubPinService) CreateWithEntry(_ context.Context, campaignID uint, input pin.EntryPinInput, _ viewerContext) (*pin.Pin, error) {
	return &pin.Pin{CampaignID: campaignID, XPos: input.XPos, YPos: input.YPos}, nil
}

func (s *stubPinService) Move(_ context.Context, campaignID, id uint, x, y float64, _ viewerContext) (*pin.Pin, error) {
	return &pin.Pin{Model: gorm.Model{ID: id}, XPos: x, YPos: y}, nil
}

func (s *stubPinService) Delete(_ context.Context, _, _ uint, _ viewerContext) error {
	return nil
}

type stubCharacterService struct{}

func (s *stubCharacterService) List(_ context.Context, _ uint) ([]character.Character, error) {
	return nil, nil
}

func (s *stubCharacterService) ListByCampaign(_ context.Context, _ uint) ([]character.Character, error) {
	return nil, nil
}

func (s *stubCharacterService) Get(_ context.Context, id, userID uint) (*character.Character, error) {
	return &character.Character{Model: gorm.Model{ID: id}, UserID: userID, Name: "Strider"}, nil
}

func (s *stubCharacterService) Create(_ context.Context, userID uint, input character.CharacterInput) (*character.Character, error) {
	return &character.Character{UserID: userID, Name: input.Name}, nil
}

func (s *stubCharacterService) Patch(_ context.Context, id, userID uint, _ map[string]any) (*character.Character, error) {
	return &character.Character{Model: gorm.Model{ID: id}, UserID: userID}, nil
}

func (s *stubCharacterService) Delete(_ context.Context, _, _ uint) error {
	return nil
}

func (s *stubCharacterService) Close(_ context.Context) error {
	return nil
}

func (s *stubCharacterService) FindByUserAndCampaign(_ context.Context, _, _ uint) (uint, bool, error) {
	return 0, false, nil
}

func (s *stubCharacterService) AssignCampaign(_ context.Context, _, _, _ uint) error {
	return nil
}

type stubSessionService struct{}

func (s *stubSessionService) Sessions(_ context.Context, _ uint) ([]session.Session, error) {
	return nil, nil
}

func (s *stubSessionService) CreateSession(_ context.Context, campaignID uint, input session.SessionInput, _ viewerContext) (*session.Session, error) {
	return &session.Session{CampaignID: campaignID, Title: input.Title}, nil
}

func (s *stubSessionService) DeleteSession(_ context.Context, _, _ uint, _ viewerContext) error {
	return nil
}

func (s *stubSessionService) AddNote(_ context.Context, campaignID, sessionID uint, input session.NoteInput) (*session.Note, error) {
	return &session.Note{SessionID: sessionID, Content: input.Content}, nil
}

func (s *stubSessionService) Logs(_ context.Context, _ uint) ([]session.Log, error) {
	return nil, nil
}

func (s *stubSessionService) AddLog(_ context.Context, campaignID uint, content string, _ viewerContext) (*session.Log, error) {
	return &session.Log{CampaignID: campaignID, Content: content}, nil
}

var _ auth.Service = (*stubAuthService)(nil)
var _ campaign.Service = (*stubCampaignService)(nil)
var _ lore.Service = (*stubLoreService)(nil)
var _ pin.Service = (*stubPinService)(nil)
var _ character.Service = (*stubCharacterService)(nil)
var _ session.Service = (*stubSessionService)(nil)
