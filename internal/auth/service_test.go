package auth

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"

	"opentales/app/internal/db"
)

func testService(t *testing.T, ttl time.Duration) Service {
	t.Helper()

	conn, err := db.Open(db.Options{
		Path:   filepath.Join(t.TempDir(), "opentales.db"),
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(conn); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if err := Migrate(context.Background(), conn, logger); err != nil {
		t.Fatalf("migrating auth schema: %v", err)
	}

	svc, err := NewService(conn, "test-secret", ttl, logger, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestSignUpThenSignIn(t *testing.T) {
	t.Parallel()

	svc := testService(t, time.Hour)
	ctx := context.Background()

	user, token, err := svc.SignUp(ctx, " Dana@Example.COM ", "correct horse", "Dana")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if user.Email != "dana@example.com" {
		t.Fatalf("expected the email normalized, got %q", user.Email)
	}
	if token == "" {
		t.Fatalf("expected a token from sign-up")
	}

	signedIn, token2, err := svc.SignIn(ctx, "dana@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if signedIn.ID != user.ID || token2 == "" {
		t.Fatalf("expected the same account back with a token")
	}
}

func TestSignUpValidation(t *testing.T) {
	t.Parallel()

	svc := testService(t, time.Hour)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "  ", "correct horse", ""); !eris.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
	if _, _, err := svc.SignUp(ctx, "dana@example.com", "short", ""); !eris.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if _, _, err := svc.SignUp(ctx, "dana@example.com", "correct horse", ""); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if _, _, err := svc.SignUp(ctx, "DANA@example.com", "correct horse", ""); !eris.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignInRejectsWrongCredentials(t *testing.T) {
	t.Parallel()

	svc := testService(t, time.Hour)
	ctx := context.Background()

	if _, _, err := svc.SignUp(ctx, "dana@example.com", "correct horse", ""); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	if _, _, err := svc.SignIn(ctx, "dana@example.com", "wrong horse"); !eris.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "nobody@example.com", "correct horse"); !eris.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestUserFromToken(t *testing.T) {
	t.Parallel()

	svc := testService(t, time.Hour)
	ctx := context.Background()

	user, token, err := svc.SignUp(ctx, "dana@example.com", "correct horse", "Dana")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	got, err := svc.UserFromToken(ctx, token)
	if err != nil {
		t.Fatalf("UserFromToken returned error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, got.ID)
	}

	if _, err := svc.UserFromToken(ctx, "not.a.token"); !eris.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	t.Parallel()

	svc := testService(t, -time.Minute)
	ctx := context.Background()

	_, token, err := svc.SignUp(ctx, "dana@example.com", "correct horse", "")
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	if _, err := svc.UserFromToken(ctx, token); !eris.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestEnsureGuestIsIdempotent(t *testing.T) {
	t.Parallel()

	svc := testService(t, time.Hour)
	ctx := context.Background()

	first, err := svc.EnsureGuest(ctx)
	if err != nil {
		t.Fatalf("EnsureGuest returned error: %v", err)
	}
	if first.Email != GuestEmail {
		t.Fatalf("expected the guest identity, got %q", first.Email)
	}

	second, err := svc.EnsureGuest(ctx)
	if err != nil {
		t.Fatalf("EnsureGuest returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same guest row, got %d and %d", first.ID, second.ID)
	}

	// The guest placeholder hash must never verify as a password.
	if _, _, err := svc.SignIn(ctx, GuestEmail, "!"); !eris.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for the guest account, got %v", err)
	}
}
