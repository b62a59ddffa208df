package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials indicates a sign-in with a wrong email or
	// password. Deliberately one error for both so the response does not
	// reveal which accounts exist.
	ErrInvalidCredentials = eris.New("invalid email or password")
	// ErrEmailTaken indicates a sign-up with an already registered email.
	ErrEmailTaken = eris.New("email is already registered")
	// ErrEmailRequired indicates a blank email.
	ErrEmailRequired = eris.New("email is required")
	// ErrPasswordTooShort indicates a password under the minimum length.
	ErrPasswordTooShort = eris.New("password must be at least 8 characters")
	// ErrInvalidToken indicates an expired, malformed or mis-signed bearer
	// token.
	ErrInvalidToken = eris.New("invalid or expired token")
)

// Service exposes account management and token verification.
type Service interface {
	SignUp(ctx context.Context, email, password, displayName string) (*User, string, error)
	SignIn(ctx context.Context, email, password string) (*User, string, error)
	UserFromToken(ctx context.Context, token string) (*User, error)
	EnsureGuest(ctx context.Context) (*User, error)
}

type service struct {
	db        *gorm.DB
	secret    []byte
	tokenTTL  time.Duration
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the auth service. The secret signs bearer tokens; ttl
// bounds their lifetime.
func NewService(db *gorm.DB, secret string, ttl time.Duration, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	if secret == "" {
		return nil, eris.New("a JWT secret is required")
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &service{db: db, secret: []byte(secret), tokenTTL: ttl, logger: logger, sentryHub: hub}, nil
}

// SignUp registers an account and returns it with a fresh bearer token.
func (s *service) SignUp(ctx context.Context, email, password, displayName string) (*User, string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, "", ErrEmailRequired
	}
	if len(password) < 8 {
		return nil, "", ErrPasswordTooShort
	}

	existing, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		wrapped := eris.Wrap(err, "hashing password")
		s.recordError(logrus.Fields{}, wrapped, "failed to hash password")
		return nil, "", wrapped
	}

	user := &User{Email: email, PasswordHash: string(hash), DisplayName: strings.TrimSpace(displayName)}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		wrapped := eris.Wrapf(err, "creating user %s", email)
		s.recordError(logrus.Fields{"email": email}, wrapped, "failed to create user")
		return nil, "", wrapped
	}

	token, err := s.mintToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// SignIn checks the credentials and returns the account with a fresh token.
func (s *service) SignIn(ctx context.Context, email, password string) (*User, string, error) {
	user, err := s.findByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.mintToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// UserFromToken verifies a bearer token and loads its account.
func (s *service) UserFromToken(ctx context.Context, token string) (*User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var user User
	if err := s.db.WithContext(ctx).First(&user, uint(id)).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		wrapped := eris.Wrapf(err, "loading user %d", id)
		s.recordError(logrus.Fields{"user_id": id}, wrapped, "failed to load token user")
		return nil, wrapped
	}
	return &user, nil
}

// EnsureGuest returns the fixed guest account, creating it on first use. In
// fallback mode every request runs as this identity.
func (s *service) EnsureGuest(ctx context.Context) (*User, error) {
	guest, err := s.findByEmail(ctx, GuestEmail)
	if err != nil {
		return nil, err
	}
	if guest != nil {
		return guest, nil
	}

	guest = &User{Email: GuestEmail, PasswordHash: "!", DisplayName: "Guest"}
	if err := s.db.WithContext(ctx).Create(guest).Error; err != nil {
		wrapped := eris.Wrap(err, "creating guest user")
		s.recordError(logrus.Fields{}, wrapped, "failed to create guest user")
		return nil, wrapped
	}
	return guest, nil
}

func (s *service) mintToken(user *User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		wrapped := eris.Wrap(err, "signing token")
		s.recordError(logrus.Fields{"user_id": user.ID}, wrapped, "failed to sign token")
		return "", wrapped
	}
	return signed, nil
}

func (s *service) findByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrap(err, "looking up user by email")
		s.recordError(logrus.Fields{}, wrapped, "failed to look up user")
		return nil, wrapped
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Migrate creates or updates the users table.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&User{}); err != nil {
		wrapped := eris.Wrap(err, "migrating users table")
		if logger != nil {
			logger.WithError(wrapped).Error("auth migration failed")
		}
		return wrapped
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
