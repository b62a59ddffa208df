package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/campaign"
)

type campaignBody struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	MapImageURL string `json:"map_image_url,omitempty"`
}

type campaignSummary struct {
	campaign.Campaign
	PlayerCount int `json:"player_count"`
}

type campaignListResponse struct {
	Body struct {
		Campaigns []campaignSummary `json:"campaigns"`
	}
}

type campaignResponse struct {
	Body *campaign.Campaign
}

type campaignIDInput struct {
	CampaignID uint `path:"campaignID"`
}

type createCampaignInput struct {
	Body campaignBody
}

type updateCampaignInput struct {
	CampaignID uint `path:"campaignID"`
	Body       campaignBody
}

type joinCampaignInput struct {
	Body struct {
		InviteCode  string `json:"invite_code"`
		CharacterID uint   `json:"character_id,omitempty"`
	}
}

type grantResponse struct {
	Body struct {
		Campaign    *campaign.Campaign `json:"campaign"`
		IsDM        bool               `json:"is_dm"`
		CharacterID uint               `json:"character_id,omitempty"`
	}
}

func (s *Server) registerCampaignRoutes() {
	huma.Get(s.api, "/campaigns", s.listCampaignsHandler, operation("List your campaigns"))
	huma.Post(s.api, "/campaigns", s.createCampaignHandler, operation("Create a campaign"))
	huma.Post(s.api, "/campaigns/join", s.joinCampaignHandler, operation("Join a campaign by invite code"))
	huma.Get(s.api, "/campaigns/{campaignID}", s.getCampaignHandler, operation("Fetch a campaign"))
	huma.Patch(s.api, "/campaigns/{campaignID}", s.updateCampaignHandler, operation("Update a campaign"))
	huma.Delete(s.api, "/campaigns/{campaignID}", s.deleteCampaignHandler, operation("Delete a campaign"))
}

func (s *Server) listCampaignsHandler(ctx context.Context, _ *struct{}) (*campaignListResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	campaigns, err := s.campaigns.List(ctx, user.ID)
	if err != nil {
		return nil, s.fail(ctx, err, "listing campaigns", nil)
	}

	resp := &campaignListResponse{}
	resp.Body.Campaigns = make([]campaignSummary, 0, len(campaigns))
	for _, c := range campaigns {
		members, err := s.characters.ListByCampaign(ctx, c.ID)
		if err != nil {
			return nil, s.fail(ctx, err, "counting campaign players", logrus.Fields{"campaign_id": c.ID})
		}
		resp.Body.Campaigns = append(resp.Body.Campaigns, campaignSummary{
			Campaign:    c,
			PlayerCount: len(members),
		})
	}
	return resp, nil
}

func (s *Server) createCampaignHandler(ctx context.Context, input *createCampaignInput) (*campaignResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.campaigns.Create(ctx, user.ID, campaignInput(input.Body))
	if err != nil {
		return nil, s.fail(ctx, err, "creating campaign", nil)
	}
	return &campaignResponse{Body: created}, nil
}

func (s *Server) getCampaignHandler(ctx context.Context, input *campaignIDInput) (*grantResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	found, err := s.campaigns.Get(ctx, input.CampaignID)
	if err != nil {
		return nil, s.fail(ctx, err, "loading campaign", logrus.Fields{"campaign_id": input.CampaignID, "user_id": user.ID})
	}

	resp := &grantResponse{}
	resp.Body.Campaign = found
	resp.Body.IsDM = grant.IsDM
	resp.Body.CharacterID = grant.CharacterID
	return resp, nil
}

func (s *Server) updateCampaignHandler(ctx context.Context, input *updateCampaignInput) (*campaignResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := s.campaigns.Update(ctx, user.ID, input.CampaignID, campaignInput(input.Body))
	if err != nil {
		return nil, s.fail(ctx, err, "updating campaign", logrus.Fields{"campaign_id": input.CampaignID})
	}
	return &campaignResponse{Body: updated}, nil
}

func (s *Server) deleteCampaignHandler(ctx context.Context, input *campaignIDInput) (*struct{}, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.campaigns.Delete(ctx, user.ID, input.CampaignID); err != nil {
		return nil, s.fail(ctx, err, "deleting campaign", logrus.Fields{"campaign_id": input.CampaignID})
	}
	return nil, nil
}

func (s *Server) joinCampaignHandler(ctx context.Context, input *joinCampaignInput) (*campaignResponse, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	joined, err := s.campaigns.Join(ctx, user.ID, input.Body.InviteCode, input.Body.CharacterID)
	if err != nil {
		return nil, s.fail(ctx, err, "joining campaign", nil)
	}
	return &campaignResponse{Body: joined}, nil
}

func campaignInput(body campaignBody) campaign.CampaignInput {
	return campaign.CampaignInput{
		Name:        body.Name,
		Description: body.Description,
		ImageURL:    body.ImageURL,
		MapImageURL: body.MapImageURL,
	}
}
