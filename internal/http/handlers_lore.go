package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/lore"
)

// LoreBody carries the writable fields of a lore entry. It is embedded into
// the create and update request bodies, so it must stay exported for the
// schema reflection to pick its fields up.
type LoreBody struct {
	Title       string `json:"title"`
	Content     string `json:"content,omitempty"`
	IsPublic    bool   `json:"is_public,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	MapImageURL string `json:"map_image_url,omitempty"`
	IconType    string `json:"icon_type,omitempty"`
}

type loreListInput struct {
	CampaignID uint `path:"campaignID"`
}

type loreListResponse struct {
	Body struct {
		Entries []lore.Entry `json:"entries"`
	}
}

type loreTreeInput struct {
	CampaignID uint   `path:"campaignID"`
	Search     string `query:"search"`
}

type loreTreeResponse struct {
	Body struct {
		Tree []lore.Node `json:"tree"`
	}
}

type mapContextInput struct {
	CampaignID uint `path:"campaignID"`
	ScopeID    uint `query:"scope_id"`
}

type mapContextResponse struct {
	Body struct {
		// Entry is nil when no visible ancestor carries a map, which sends
		// the client back to the campaign's own map image.
		Entry *lore.Entry `json:"entry"`
	}
}

type suggestInput struct {
	CampaignID uint   `path:"campaignID"`
	Filter     string `query:"filter"`
}

type mentionsInput struct {
	CampaignID uint `path:"campaignID"`
	Body       struct {
		Text string `json:"text"`
	}
}

type mentionsResponse struct {
	Body struct {
		Segments []lore.Segment `json:"segments"`
		HTML     string         `json:"html"`
	}
}

type createLoreInput struct {
	CampaignID uint `path:"campaignID"`
	Body       struct {
		LoreBody
		ParentID *uint `json:"parent_id,omitempty"`
	}
}

type loreEntryInput struct {
	CampaignID uint `path:"campaignID"`
	LoreID     uint `path:"loreID"`
}

type loreEntryResponse struct {
	Body struct {
		Entry *lore.Entry `json:"entry"`
		HTML  string      `json:"html"`
	}
}

type updateLoreInput struct {
	CampaignID uint `path:"campaignID"`
	LoreID     uint `path:"loreID"`
	Body       struct {
		LoreBody
		// Decision answers a pending visibility cascade prompt: "only" or
		// "cascade". Leaving it empty re-triggers the prompt when the edit
		// hides an entry that still has children.
		Decision string `json:"decision,omitempty"`
	}
}

type loreResponse struct {
	Body *lore.Entry
}

func (s *Server) registerLoreRoutes() {
	huma.Get(s.api, "/campaigns/{campaignID}/lore", s.listLoreHandler, operation("List lore entries"))
	huma.Get(s.api, "/campaigns/{campaignID}/lore/tree", s.loreTreeHandler, operation("Fetch the lore tree"))
	huma.Get(s.api, "/campaigns/{campaignID}/lore/map-context", s.mapContextHandler, operation("Resolve the map context for a scope"))
	huma.Get(s.api, "/campaigns/{campaignID}/lore/suggest", s.suggestHandler, operation("Suggest entries for an @mention"))
	huma.Post(s.api, "/campaigns/{campaignID}/lore/mentions", s.mentionsHandler, operation("Resolve @mentions in a text"))
	huma.Post(s.api, "/campaigns/{campaignID}/lore", s.createLoreHandler, operation("Create a lore entry"))
	huma.Get(s.api, "/campaigns/{campaignID}/lore/{loreID}", s.getLoreHandler, operation("Fetch a lore entry"))
	huma.Patch(s.api, "/campaigns/{campaignID}/lore/{loreID}", s.updateLoreHandler, operation("Update a lore entry"))
	huma.Delete(s.api, "/campaigns/{campaignID}/lore/{loreID}", s.deleteLoreHandler, operation("Delete a lore entry"))
}

func (s *Server) listLoreHandler(ctx context.Context, input *loreListInput) (*loreListResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	entries, err := s.lore.Entries(ctx, input.CampaignID, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "listing lore entries", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &loreListResponse{}
	resp.Body.Entries = entries
	return resp, nil
}

func (s *Server) loreTreeHandler(ctx context.Context, input *loreTreeInput) (*loreTreeResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	tree, err := s.lore.Tree(ctx, input.CampaignID, input.Search, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "building lore tree", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &loreTreeResponse{}
	resp.Body.Tree = tree
	return resp, nil
}

func (s *Server) mapContextHandler(ctx context.Context, input *mapContextInput) (*mapContextResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	var scopeID *uint
	if input.ScopeID != 0 {
		scopeID = &input.ScopeID
	}

	entry, err := s.lore.MapContext(ctx, input.CampaignID, scopeID, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "resolving map context", logrus.Fields{"campaign_id": input.CampaignID, "scope_id": input.ScopeID})
	}

	resp := &mapContextResponse{}
	resp.Body.Entry = entry
	return resp, nil
}

func (s *Server) suggestHandler(ctx context.Context, input *suggestInput) (*loreListResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	entries, err := s.lore.Suggest(ctx, input.CampaignID, input.Filter, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "suggesting mentions", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &loreListResponse{}
	resp.Body.Entries = entries
	return resp, nil
}

func (s *Server) mentionsHandler(ctx context.Context, input *mentionsInput) (*mentionsResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	segments, err := s.lore.Mentions(ctx, input.CampaignID, input.Body.Text, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "resolving mentions", logrus.Fields{"campaign_id": input.CampaignID})
	}

	resp := &mentionsResponse{}
	resp.Body.Segments = segments
	resp.Body.HTML = renderSegments(segments, input.CampaignID)
	return resp, nil
}

func (s *Server) createLoreHandler(ctx context.Context, input *createLoreInput) (*loreResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	created, err := s.lore.Create(ctx, input.CampaignID, entryInput(input.Body.LoreBody), input.Body.ParentID, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "creating lore entry", logrus.Fields{"campaign_id": input.CampaignID})
	}
	return &loreResponse{Body: created}, nil
}

func (s *Server) getLoreHandler(ctx context.Context, input *loreEntryInput) (*loreEntryResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	v := grant.Viewer(user.ID)
	entry, err := s.lore.Get(ctx, input.LoreID, v)
	if err != nil {
		return nil, s.fail(ctx, err, "loading lore entry", logrus.Fields{"lore_id": input.LoreID})
	}
	if entry.CampaignID != input.CampaignID {
		return nil, huma.Error404NotFound("lore entry not found")
	}

	segments, err := s.lore.Mentions(ctx, input.CampaignID, stripMarkup(entry.Content), v)
	if err != nil {
		return nil, s.fail(ctx, err, "rendering lore entry", logrus.Fields{"lore_id": input.LoreID})
	}

	resp := &loreEntryResponse{}
	resp.Body.Entry = entry
	resp.Body.HTML = renderSegments(segments, input.CampaignID)
	return resp, nil
}

func (s *Server) updateLoreHandler(ctx context.Context, input *updateLoreInput) (*loreResponse, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	decision := lore.CascadeDecision(input.Body.Decision)
	updated, err := s.lore.Update(ctx, input.CampaignID, input.LoreID, entryInput(input.Body.LoreBody), decision, grant.Viewer(user.ID))
	if err != nil {
		return nil, s.fail(ctx, err, "updating lore entry", logrus.Fields{"lore_id": input.LoreID})
	}
	return &loreResponse{Body: updated}, nil
}

func (s *Server) deleteLoreHandler(ctx context.Context, input *loreEntryInput) (*struct{}, error) {
	user, grant, err := s.requireAccess(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	if err := s.lore.Delete(ctx, input.CampaignID, input.LoreID, grant.Viewer(user.ID)); err != nil {
		return nil, s.fail(ctx, err, "deleting lore entry", logrus.Fields{"lore_id": input.LoreID})
	}
	return nil, nil
}

func entryInput(body LoreBody) lore.EntryInput {
	return lore.EntryInput{
		Title:       body.Title,
		Content:     body.Content,
		IsPublic:    body.IsPublic,
		ImageURL:    body.ImageURL,
		MapImageURL: body.MapImageURL,
		IconType:    body.IconType,
	}
}
