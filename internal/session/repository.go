package session

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository is the persistence boundary for the campaign journal.
type Repository interface {
	ListSessions(ctx context.Context, campaignID uint) ([]Session, error)
	GetSession(ctx context.Context, id uint) (*Session, error)
	CreateSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id uint) error
	CreateNote(ctx context.Context, note *Note) error
	ListLogs(ctx context.Context, campaignID uint) ([]Log, error)
	CreateLog(ctx context.Context, log *Log) error
}

// GormRepository stores the journal through Gorm.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// ListSessions returns the campaign's sessions newest first, each with its
// notes in writing order and their character attributions joined in.
func (r *GormRepository) ListSessions(ctx context.Context, campaignID uint) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Order("session_notes.created_at ASC").Preload("Character")
		}).
		Where("campaign_id = ?", campaignID).
		Order("session_date DESC").
		Find(&sessions).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "listing sessions for campaign %d", campaignID)
		r.logError(logrus.Fields{"campaign_id": campaignID}, wrapped, "failed to list sessions")
		return nil, wrapped
	}
	return sessions, nil
}

// GetSession returns one session with its notes, or nil when no row exists.
func (r *GormRepository) GetSession(ctx context.Context, id uint) (*Session, error) {
	var session Session
	err := r.db.WithContext(ctx).
		Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Order("session_notes.created_at ASC").Preload("Character")
		}).
		First(&session, id).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrapf(err, "fetching session %d", id)
		r.logError(logrus.Fields{"session_id": id}, wrapped, "failed to fetch session")
		return nil, wrapped
	}
	return &session, nil
}

// CreateSession persists a new session.
func (r *GormRepository) CreateSession(ctx context.Context, session *Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		wrapped := eris.Wrapf(err, "creating session %q", session.Title)
		r.logError(logrus.Fields{"title": session.Title}, wrapped, "failed to create session")
		return wrapped
	}
	return nil
}

// DeleteSession removes a session and, through the FK, its notes.
func (r *GormRepository) DeleteSession(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Unscoped().Delete(&Session{}, id).Error; err != nil {
		wrapped := eris.Wrapf(err, "deleting session %d", id)
		r.logError(logrus.Fields{"session_id": id}, wrapped, "failed to delete session")
		return wrapped
	}
	return nil
}

// CreateNote persists a note under its session.
func (r *GormRepository) CreateNote(ctx context.Context, note *Note) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		wrapped := eris.Wrapf(err, "creating note for session %d", note.SessionID)
		r.logError(logrus.Fields{"session_id": note.SessionID}, wrapped, "failed to create note")
		return wrapped
	}
	return nil
}

// ListLogs returns the campaign's log lines newest first.
func (r *GormRepository) ListLogs(ctx context.Context, campaignID uint) ([]Log, error) {
	var logs []Log
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&logs).Error
	if err != nil {
		wrapped := eris.Wrapf(err, "listing logs for campaign %d", campaignID)
		r.logError(logrus.Fields{"campaign_id": campaignID}, wrapped, "failed to list logs")
		return nil, wrapped
	}
	return logs, nil
}

// CreateLog persists a campaign log line.
func (r *GormRepository) CreateLog(ctx context.Context, log *Log) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		wrapped := eris.Wrapf(err, "creating log for campaign %d", log.CampaignID)
		r.logError(logrus.Fields{"campaign_id": log.CampaignID}, wrapped, "failed to create log")
		return wrapped
	}
	return nil
}

// Migrate creates or updates the journal tables.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&Session{}, &Note{}, &Log{}); err != nil {
		wrapped := eris.Wrap(err, "migrating session tables")
		if logger != nil {
			logger.WithError(wrapped).Error("session migration failed")
		}
		return wrapped
	}
	return nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}
	r.logger.WithFields(fields).WithError(err).Error(message)
}
