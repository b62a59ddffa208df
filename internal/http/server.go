package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"opentales/app/internal/auth"
	"opentales/app/internal/campaign"
	"opentales/app/internal/character"
	"opentales/app/internal/lore"
	"opentales/app/internal/pin"
	"opentales/app/internal/session"
	"opentales/app/internal/storage"
)

// Options configures the HTTP server wiring.
type Options struct {
	Auth         auth.Service
	Campaigns    campaign.Service
	Lore         lore.Service
	Pins         pin.Service
	Characters   character.Service
	Sessions     session.Service
	Uploader     storage.Uploader
	Database     *gorm.DB
	Logger       *logrus.Logger
	SentryHub    *sentry.Hub
	RateLimiter  RateLimiterSettings
	FallbackMode bool
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma on a standard mux.
type Server struct {
	api          huma.API
	mux          *stdhttp.ServeMux
	auth         auth.Service
	campaigns    campaign.Service
	lore         lore.Service
	pins         pin.Service
	characters   character.Service
	sessions     session.Service
	uploader     storage.Uploader
	logger       *logrus.Logger
	sentry       *sentry.Hub
	db           *gorm.DB
	rateLimiter  *RateLimiter
	fallbackMode bool
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, eris.New("auth service is required")
	}
	if opts.Campaigns == nil {
		return nil, eris.New("campaign service is required")
	}
	if opts.Lore == nil {
		return nil, eris.New("lore service is required")
	}
	if opts.Pins == nil {
		return nil, eris.New("pin service is required")
	}
	if opts.Characters == nil {
		return nil, eris.New("character service is required")
	}
	if opts.Sessions == nil {
		return nil, eris.New("session service is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("OpenTales", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:          api,
		mux:          mux,
		auth:         opts.Auth,
		campaigns:    opts.Campaigns,
		lore:         opts.Lore,
		pins:         opts.Pins,
		characters:   opts.Characters,
		sessions:     opts.Sessions,
		uploader:     opts.Uploader,
		logger:       opts.Logger,
		sentry:       opts.SentryHub,
		db:           opts.Database,
		fallbackMode: opts.FallbackMode,
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the
// application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.authMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerAuthRoutes()
	s.registerCampaignRoutes()
	s.registerLoreRoutes()
	s.registerPinRoutes()
	s.registerCharacterRoutes()
	s.registerSessionRoutes()
	s.registerUploadRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}

// recordError logs an error with request context and forwards it to Sentry.
func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if s.logger != nil {
		s.logger.WithFields(fields).WithError(err).Error(message)
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = s.sentry
	}
	if hub != nil {
		hub.CaptureException(err)
	}
}

// requireUser returns the authenticated account or a 401.
func (s *Server) requireUser(ctx context.Context) (*auth.User, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	return user, nil
}

// requireAccess runs the campaign gate for the authenticated user and
// returns the grant alongside the account.
func (s *Server) requireAccess(ctx context.Context, campaignID uint) (*auth.User, campaign.Grant, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, campaign.Grant{}, err
	}

	grant, err := s.campaigns.CheckAccess(ctx, user.ID, campaignID)
	if err != nil {
		return nil, campaign.Grant{}, classifyError(err)
	}
	if grant.Access != campaign.AccessGranted {
		return nil, campaign.Grant{}, huma.Error403Forbidden("you are not a member of this campaign")
	}
	return user, grant, nil
}
