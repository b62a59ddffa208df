package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"opentales/app/internal/auth"
	"opentales/app/internal/campaign"
	"opentales/app/internal/character"
	"opentales/app/internal/config"
	appdb "opentales/app/internal/db"
	apphttp "opentales/app/internal/http"
	"opentales/app/internal/kv"
	applog "opentales/app/internal/log"
	"opentales/app/internal/lore"
	"opentales/app/internal/pin"
	"opentales/app/internal/session"
	"opentales/app/internal/storage"
)

// localSecret signs guest tokens when running against the local SQLite
// fallback, where no real accounts exist.
const localSecret = "opentales-local-only"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{
		DSN:  cfg.DatabaseURL,
		Path: cfg.DBPath,
	})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	// Referenced tables must exist before the tables that point at them.
	migrations := []struct {
		name string
		run  func(context.Context, *gorm.DB, *logrus.Logger) error
	}{
		{"auth", auth.Migrate},
		{"campaign", campaign.Migrate},
		{"character", character.Migrate},
		{"lore", lore.Migrate},
		{"pin", pin.Migrate},
		{"session", session.Migrate},
		{"kv", kv.Migrate},
	}
	for _, migration := range migrations {
		if err := migration.run(ctx, dbConn, logger); err != nil {
			return eris.Wrapf(err, "running %s migrations", migration.name)
		}
	}

	secret := cfg.JWTSecret
	if secret == "" {
		if !cfg.FallbackMode() {
			return eris.New("JWT_SECRET is required when DATABASE_URL is set")
		}
		secret = localSecret
	}

	authService, err := auth.NewService(dbConn, secret, cfg.TokenTTL, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating auth service")
	}

	settings, err := kv.NewStore(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "creating settings store")
	}

	characterRepo, err := character.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building character repository")
	}

	// The settings mirror only exists in fallback mode, where clients read
	// their sheets from the local snapshot between syncs.
	var mirror character.SettingsStore
	if cfg.FallbackMode() {
		mirror = settings
	}

	characterService, err := character.NewService(characterRepo, cfg.CharacterFlushQuiet, mirror, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating character service")
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if closeErr := characterService.Close(drainCtx); closeErr != nil {
			logger.WithError(closeErr).Error("draining character writes")
		}
	}()

	campaignRepo, err := campaign.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building campaign repository")
	}

	campaignService, err := campaign.NewService(campaignRepo, characterService, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating campaign service")
	}

	pinRepo, err := pin.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building pin repository")
	}

	loreRepo, err := lore.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building lore repository")
	}

	loreService, err := lore.NewService(loreRepo, pinRepo, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating lore service")
	}

	pinService, err := pin.NewService(pinRepo, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating pin service")
	}

	sessionRepo, err := session.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building session repository")
	}

	sessionService, err := session.NewService(sessionRepo, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating session service")
	}

	var uploader storage.Uploader
	if cfg.StorageConfigured() {
		minioUploader, err := storage.NewUploader(cfg.Storage, logger)
		if err != nil {
			return eris.Wrap(err, "creating uploader")
		}
		uploader = minioUploader
	} else {
		logger.Info("object storage not configured, image uploads disabled")
	}

	transport, err := apphttp.NewServer(apphttp.Options{
		Auth:       authService,
		Campaigns:  campaignService,
		Lore:       loreService,
		Pins:       pinService,
		Characters: characterService,
		Sessions:   sessionService,
		Uploader:   uploader,
		Database:   dbConn,
		Logger:     logger,
		SentryHub:  sentryHub,
		RateLimiter: apphttp.RateLimiterSettings{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
		FallbackMode: cfg.FallbackMode(),
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: transport.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr":     httpServer.Addr,
		"fallback": cfg.FallbackMode(),
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("http server shut down cleanly")
	return nil
}
