package session

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/viewer"
)

// SessionInput carries the fields of a new play session.
type SessionInput struct {
	Title       string
	SessionDate time.Time
	Summary     string
}

// NoteInput carries the fields of a new session note.
type NoteInput struct {
	Content     string
	CharacterID *uint
}

var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = eris.New("session not found")
	// ErrNotDM indicates a journal mutation by a viewer without DM rights.
	ErrNotDM = eris.New("only the campaign DM can edit the journal")
	// ErrTitleRequired indicates a missing or blank session title.
	ErrTitleRequired = eris.New("session title is required")
	// ErrContentRequired indicates an empty note or log line.
	ErrContentRequired = eris.New("content is required")
)

// Service exposes the campaign journal.
type Service interface {
	Sessions(ctx context.Context, campaignID uint) ([]Session, error)
	CreateSession(ctx context.Context, campaignID uint, input SessionInput, v viewer.Context) (*Session, error)
	DeleteSession(ctx context.Context, campaignID, id uint, v viewer.Context) error
	AddNote(ctx context.Context, campaignID, sessionID uint, input NoteInput) (*Note, error)
	Logs(ctx context.Context, campaignID uint) ([]Log, error)
	AddLog(ctx context.Context, campaignID uint, content string, v viewer.Context) (*Log, error)
}

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the session service with its dependencies.
func NewService(repo Repository, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("session repository is required")
	}

	return &service{repo: repo, logger: logger, sentryHub: hub}, nil
}

func (s *service) Sessions(ctx context.Context, campaignID uint) ([]Session, error) {
	sessions, err := s.repo.ListSessions(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing sessions")
		return nil, err
	}
	return sessions, nil
}

func (s *service) CreateSession(ctx context.Context, campaignID uint, input SessionInput, v viewer.Context) (*Session, error) {
	if !v.IsDM {
		return nil, ErrNotDM
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if input.SessionDate.IsZero() {
		input.SessionDate = time.Now()
	}

	session := &Session{
		CampaignID:  campaignID,
		Title:       input.Title,
		SessionDate: input.SessionDate,
		Summary:     input.Summary,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		s.recordError(logrus.Fields{"title": input.Title}, err, "creating session")
		return nil, err
	}
	return session, nil
}

func (s *service) DeleteSession(ctx context.Context, campaignID, id uint, v viewer.Context) error {
	if !v.IsDM {
		return ErrNotDM
	}

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		s.recordError(logrus.Fields{"session_id": id}, err, "fetching session for delete")
		return err
	}
	if session == nil || session.CampaignID != campaignID {
		return ErrSessionNotFound
	}

	if err := s.repo.DeleteSession(ctx, id); err != nil {
		s.recordError(logrus.Fields{"session_id": id}, err, "deleting session")
		return err
	}
	return nil
}

// AddNote appends a note to a session. Players and the DM both take notes, so
// no role check here.
func (s *service) AddNote(ctx context.Context, campaignID, sessionID uint, input NoteInput) (*Note, error) {
	input.Content = strings.TrimSpace(input.Content)
	if input.Content == "" {
		return nil, ErrContentRequired
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		s.recordError(logrus.Fields{"session_id": sessionID}, err, "fetching session for note")
		return nil, err
	}
	if session == nil || session.CampaignID != campaignID {
		return nil, ErrSessionNotFound
	}

	note := &Note{
		SessionID:   sessionID,
		CharacterID: input.CharacterID,
		Content:     input.Content,
	}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		s.recordError(logrus.Fields{"session_id": sessionID}, err, "creating note")
		return nil, err
	}
	return note, nil
}

func (s *service) Logs(ctx context.Context, campaignID uint) ([]Log, error) {
	logs, err := s.repo.ListLogs(ctx, campaignID)
	if err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "listing logs")
		return nil, err
	}
	return logs, nil
}

func (s *service) AddLog(ctx context.Context, campaignID uint, content string, v viewer.Context) (*Log, error) {
	if !v.IsDM {
		return nil, ErrNotDM
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrContentRequired
	}

	log := &Log{CampaignID: campaignID, Content: content}
	if err := s.repo.CreateLog(ctx, log); err != nil {
		s.recordError(logrus.Fields{"campaign_id": campaignID}, err, "creating log")
		return nil, err
	}
	return log, nil
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
