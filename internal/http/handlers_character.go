package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/character"
)

type characterListResponse struct {
	Body struct {
		Characters []character.Character `json:"characters"`
	}
}

type characterResponse struct {
	Body *character.Character
}

type characterIDInput struct {
	CharacterID uint `path:"characterID"`
}

type createCharacterInput struct {
	Body struct {
		Name      string `json:"name"`
		Race      string `json:"race,omitempty"`
		Class     string `json:"class,omitempty"`
		Level     int    `json:"level,omitempty"`
		HP        int    `json:"hp,omitempty"`
		MaxHP     int    `json:"max_hp,omitempty"`
		AC        int    `json:"ac,omitempty"`
		Str       int    `json:"str,omitempty"`
		Dex       int    `json:"dex,omitempty"`
		Con       int    `json:"con,omitempty"`
		Int       int    `json:"int,omitempty"`
		Wis       int    `json:"wis,omitempty"`
		Cha       int    `json:"cha,omitempty"`
		Inventory string `json:"inventory,omitempty"`
		Notes     string `json:"notes,omitempty"`
		ImageURL  string `json:"image_url,omitempty"`
	}
}

type patchCharacterInput struct {
	CharacterID uint           `path:"characterID"`
	Body        map[string]any
}

func (s *Server) registerCharacterRoutes() {
	huma.Get(s.api, "/characters", s.listCharactersHandler, operation("List your characters"))
	huma.Post(s.api, "/characters", s.createCharacterHandler, operation("Create a character sheet"))
	huma.Get(s.api, "/characters/{characterID}", s.getCharacterHandler, operation("Fetch a character sheet"))
	huma.Patch(s.api, "/characters/{characterID}", s.patchCharacterHandler, operation("Patch fields on a character sheet"))
	huma.Delete(s.api, "/characters/{characterID}", s.deleteCharacterHandler, operation("Delete a character sheet"))
	huma.Get(s.api, "/campaigns/{campaignID}/characters", s.campaignCharactersHandler, operation("List the characters in a campaign"))
}

func (s *Server) listCharactersHandler(ctx context.Context, _ *struct{}) (*characterListResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	characters, err := s.characters.List(ctx, user.ID)
	if err != nil {
		return nil, s.fail(ctx, err, "listing characters", nil)
	}

	resp := &characterListResponse{}
	resp.Body.Characters = characters
	return resp, nil
}

func (s *Server) campaignCharactersHandler(ctx context.Context, input *loreListInput) (*characterListResponse, error) {
	_, _, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	characters, err := s.characters.ListByCampaign(ctx, input.CampaignID)
	if err != nil {
		return nil, s.fail(ctx, err, "listing campaign characters", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &characterListResponse{}
	resp.Body.Characters = characters
	return resp, nil
}

func (s *Server) createCharacterHandler(ctx context.Context, input *createCharacterInput) (*characterResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	b := input.Body
	created, err := s.characters.Create(ctx, user.ID, character.CharacterInput{
		Name:      b.Name,
		Race:      b.Race,
		Class:     b.Class,
		Level:     b.Level,
		HP:        b.HP,
		MaxHP:     b.MaxHP,
		AC:        b.AC,
		Str:       b.Str,
		Dex:       b.Dex,
		Con:       b.Con,
		Int:       b.Int,
		Wis:       b.Wis,
		Cha:       b.Cha,
		Inventory: b.Inventory,
		Notes:     b.Notes,
		ImageURL:  b.ImageURL,
	})
	if err != nil {
		return nil, s.fail(ctx, err, "creating character", nil)
	}
	return &characterResponse{Body: created}, nil
}

func (s *Server) getCharacterHandler(ctx context.Context, input *characterIDInput) (*characterResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	found, err := s.characters.Get(ctx, input.CharacterID, user.ID)
	if err != nil {
		return nil, s.fail(ctx, err, "loading character", logrus.Fields{"character_id": input.CharacterID})
	}
	return &characterResponse{Body: found}, nil
}

func (s *Server) patchCharacterHandler(ctx context.Context, input *patchCharacterInput) (*characterResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	patched, err := s.characters.Patch(ctx, input.CharacterID, user.ID, input.Body)
	if err != nil {
		return nil, s.fail(ctx, err, "patching character", logrus.Fields{"character_id": input.CharacterID})
	}
	return &characterResponse{Body: patched}, nil
}

func (s *Server) deleteCharacterHandler(ctx context.Context, input *characterIDInput) (*struct{}, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.characters.Delete(ctx, input.CharacterID, user.ID); err != nil {
		return nil, s.fail(ctx, err, "deleting character", logrus.Fields{"character_id": input.CharacterID})
	}
	return nil, nil
}
