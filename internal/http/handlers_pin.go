package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/pin"
)

type pinListInput struct {
	CampaignID uint `path:"campaignID"`
	// ParentLoreID selects the map surface: zero means the campaign's own
	// map, anything else the map of that lore entry.
	ParentLoreID uint `query:"parent_lore_id"`
}

type pinListResponse struct {
	Body struct {
		Pins []pin.Pin `json:"pins"`
	}
}

type badgesResponse struct {
	Body struct {
		Badges map[uint]int `json:"badges"`
	}
}

type createPinInput struct {
	CampaignID uint `path:"campaignID"`
	Body       struct {
		LoreID       uint    `json:"lore_id"`
		ParentLoreID *uint   `json:"parent_lore_id,omitempty"`
		XPos         float64 `json:"x_pos"`
		YPos         float64 `json:"y_pos"`
		IconType     string  `json:"icon_type,omitempty"`
	}
}

type createEntryPinInput struct {
	CampaignID uint `path:"campaignID"`
	Body       struct {
		Title        string  `json:"title"`
		Content      string  `json:"content,omitempty"`
		IsPublic     bool    `json:"is_public,omitempty"`
		IconType     string  `json:"icon_type,omitempty"`
		ParentLoreID *uint   `json:"parent_lore_id,omitempty"`
		XPos         float64 `json:"x_pos"`
		YPos         float64 `json:"y_pos"`
	}
}

type movePinInput struct {
	CampaignID uint `path:"campaignID"`
	PinID      uint `path:"pinID"`
	Body       struct {
		XPos float64 `json:"x_pos"`
		YPos float64 `json:"y_pos"`
	}
}

type pinIDInput struct {
	CampaignID uint `path:"campaignID"`
	PinID      uint `path:"pinID"`
}

type pinResponse struct {
	Body *pin.Pin
}

func (s *Server) registerPinRoutes() {
	huma.Get(s.api, "/campaigns/{campaignID}/pins", s.listPinsHandler, operation("List pins on a map surface"))
	huma.Get(s.api, "/campaigns/{campaignID}/pins/badges", s.pinBadgesHandler, operation("Count pins per lore entry"))
	huma.Post(s.api, "/campaigns/{campaignID}/pins", s.createPinHandler, operation("Pin an existing entry to the map"))
	huma.Post(s.api, "/campaigns/{campaignID}/pins/with-entry", s.createEntryPinHandler, operation("Create an entry and pin it in one step"))
	huma.Patch(s.api, "/campaigns/{campaignID}/pins/{pinID}/position", s.movePinHandler, operation("Move a pin"))
	huma.Delete(s.api, "/campaigns/{campaignID}/pins/{pinID}", s.deletePinHandler, operation("Delete a pin"))
}

func (s *Server) listPinsHandler(ctx context.Context, input *pinListInput) (*pinListResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	var parent *uint
	if input.ParentLoreID != 0 {
		parent = &input.ParentLoreID
	}

	pins, err := s.pins.List(ctx, input.CampaignID, parent, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "listing pins", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &pinListResponse{}
	resp.Body.Pins = pins
	return resp, nil
}

func (s *Server) pinBadgesHandler(ctx context.Context, input *loreListInput) (*badgesResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	badges, err := s.pins.Badges(ctx, input.CampaignID, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "counting pin badges", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &badgesResponse{}
	resp.Body.Badges = badges
	return resp, nil
}

func (s *Server) createPinHandler(ctx context.Context, input *createPinInput) (*pinResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	created, err := s.pins.Create(ctx, input.CampaignID, pin.PinInput{
		LoreID:       input.Body.LoreID,
		ParentLoreID: input.Body.ParentLoreID,
		XPos:         input.Body.XPos,
		YPos:         input.Body.YPos,
		IconType:     input.Body.IconType,
	}, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "creating pin", logrus.Fields{"campaign_id": input.CampaignID})
	}
	return &pinResponse{Body: created}, nil
}

func (s *Server) createEntryPinHandler(ctx context.Context, input *createEntryPinInput) (*pinResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	created, err := s.pins.CreateWithEntry(ctx, input.CampaignID, pin.EntryPinInput{
		Title:        input.Body.Title,
		Content:      input.Body.Content,
		IsPublic:     input.Body.IsPublic,
		IconType:     input.Body.IconType,
		ParentLoreID: input.Body.ParentLoreID,
		XPos:         input.Body.XPos,
		YPos:         input.Body.YPos,
	}, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "creating entry with pin", logrus.Fields{"campaign_id": input.CampaignID})
	}
	return &pinResponse{Body: created}, nil
}

func (s *Server) movePinHandler(ctx context.Context, input *movePinInput) (*pinResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	moved, err := s.pins.Move(ctx, input.CampaignID, input.PinID, input.Body.XPos, input.Body.YPos, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "moving pin", logrus.Fields{"pin_id": input.PinID})
	}
	return &pinResponse{Body: moved}, nil
}

func (s *Server) deletePinHandler(ctx context.Context, input *pinIDInput) (*struct{}, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	if err := s.pins.Delete(ctx, input.CampaignID, input.PinID, grant.Viewer(user.ID)); err != nil {
		return nil, s.fail(ctx, err, "deleting pin", logrus.Fields{"pin_id": input.PinID})
	}
	return nil, nil
}
