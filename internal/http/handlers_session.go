package http

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/session"
)

type sessionListResponse struct {
	Body struct {
		Sessions []session.Session `json:"sessions"`
	}
}

type createSessionInput struct {
	CampaignID uint `path:"campaignID"`
	Body       struct {
		Title       string     `json:"title"`
		SessionDate *time.Time `json:"session_date,omitempty"`
		Summary     string     `json:"summary,omitempty"`
	}
}

type sessionResponseBody struct {
	Body *session.Session
}

type sessionIDInput struct {
	CampaignID uint `path:"campaignID"`
	SessionID  uint `path:"sessionID"`
}

type addNoteInput struct {
	CampaignID uint `path:"campaignID"`
	SessionID  uint `path:"sessionID"`
	Body       struct {
		Content string `json:"content"`
	}
}

type noteResponse struct {
	Body *session.Note
}

type logListResponse struct {
	Body struct {
		Logs []session.Log `json:"logs"`
	}
}

type addLogInput struct {
	CampaignID uint `path:"campaignID"`
	Body       struct {
		Content string `json:"content"`
	}
}

type logResponse struct {
	Body *session.Log
}

func (s *Server) registerSessionRoutes() {
	huma.Get(s.api, "/campaigns/{campaignID}/sessions", s.listSessionsHandler, operation("List play sessions"))
	huma.Post(s.api, "/campaigns/{campaignID}/sessions", s.createSessionHandler, operation("Create a play session"))
	huma.Delete(s.api, "/campaigns/{campaignID}/sessions/{sessionID}", s.deleteSessionHandler, operation("Delete a play session"))
	huma.Post(s.api, "/campaigns/{campaignID}/sessions/{sessionID}/notes", s.addNoteHandler, operation("Add a note to a session"))
	huma.Get(s.api, "/campaigns/{campaignID}/logs", s.listLogsHandler, operation("List quick log lines"))
	huma.Post(s.api, "/campaigns/{campaignID}/logs", s.addLogHandler, operation("Add a quick log line"))
}

func (s *Server) listSessionsHandler(ctx context.Context, input *loreListInput) (*sessionListResponse, error) {
	_, _, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessions.Sessions(ctx, input.CampaignID)
	if err != nil {
		return nil, s.fail(ctx, err, "listing sessions", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &sessionListResponse{}
	resp.Body.Sessions = sessions
	return resp, nil
}

func (s *Server) createSessionHandler(ctx context.Context, input *createSessionInput) (*sessionResponseBody, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	in := session.SessionInput{
		Title:   input.Body.Title,
		Summary: input.Body.Summary,
	}
	if input.Body.SessionDate != nil {
		in.SessionDate = *input.Body.SessionDate
	}

	created, err := s.sessions.CreateSession(ctx, input.CampaignID, in, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "creating session", logrus.Fields{"campaign_id": input.CampaignID})
	}
	return &sessionResponseBody{Body: created}, nil
}

func (s *Server) deleteSessionHandler(ctx context.Context, input *sessionIDInput) (*struct{}, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.DeleteSession(ctx, input.CampaignID, input.SessionID, grant.Viewer(user.ID)); err != nil {
		return nil, s.fail(ctx, err, "deleting session", logrus.Fields{"session_id": input.SessionID})
	}
	return nil, nil
}

func (s *Server) addNoteHandler(ctx context.Context, input *addNoteInput) (*noteResponse, error) {
	_, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	in := session.NoteInput{Content: input.Body.Content}
	// Player notes are attributed to the character they entered the
	// campaign with; DM notes stay unattributed.
	if grant.CharacterID != 0 {
		characterID := grant.CharacterID
		in.CharacterID = &characterID
	}

	note, err := s.sessions.AddNote(ctx, input.CampaignID, input.SessionID, in)
	if err != nil {
		return nil, s.fail(ctx, err, "adding session note", logrus.Fields{"session_id": input.SessionID})
	}
	return &noteResponse{Body: note}, nil
}

func (s *Server) listLogsHandler(ctx context.Context, input *loreListInput) (*logListResponse, error) {
	_, _, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	logs, err := s.sessions.Logs(ctx, input.CampaignID)
	if err != nil {
		return nil, s.fail(ctx, err, "listing logs", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &logListResponse{}
	resp.Body.Logs = logs
	return resp, nil
}

func (s *Server) addLogHandler(ctx context.Context, input *addLogInput) (*logResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	line, err := s.sessions.AddLog(ctx, input.CampaignID, input.Body.Content, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "adding log line", logrus.Fields{"campaign_id": input.CampaignID})
	}
	return &logResponse{Body: line}, nil
}
