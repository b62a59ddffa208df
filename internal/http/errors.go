package http

import (
	"encoding/json"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"

	"opentales/app/internal/auth"
	"opentales/app/internal/campaign"
	"opentales/app/internal/character"
	"opentales/app/internal/lore"
	"opentales/app/internal/pin"
	"opentales/app/internal/session"
	"opentales/app/internal/storage"
)

const errorFallbackMessage = "We couldn't process your request right now."

// classifyError translates domain sentinels into API errors. Anything
// unrecognized is a 500 with a generic detail so internals never leak.
func classifyError(err error) huma.StatusError {
	switch {
	case err == nil:
		return huma.Error500InternalServerError(errorFallbackMessage)

	// Validation.
	case eris.Is(err, lore.ErrTitleRequired),
		eris.Is(err, lore.ErrInvalidIcon),
		eris.Is(err, lore.ErrInvalidParent),
		eris.Is(err, campaign.ErrNameRequired),
		eris.Is(err, character.ErrNameRequired),
		eris.Is(err, character.ErrUnknownField),
		eris.Is(err, session.ErrTitleRequired),
		eris.Is(err, session.ErrContentRequired),
		eris.Is(err, pin.ErrOutOfBounds),
		eris.Is(err, auth.ErrEmailRequired),
		eris.Is(err, auth.ErrPasswordTooShort):
		return huma.Error422UnprocessableEntity(eris.Cause(err).Error())

	// Authentication.
	case eris.Is(err, auth.ErrInvalidCredentials),
		eris.Is(err, auth.ErrInvalidToken):
		return huma.Error401Unauthorized(eris.Cause(err).Error())

	// Authorization.
	case eris.Is(err, lore.ErrNotDM),
		eris.Is(err, pin.ErrNotDM),
		eris.Is(err, session.ErrNotDM),
		eris.Is(err, campaign.ErrNotOwner),
		eris.Is(err, character.ErrNotSheetOwner):
		return huma.Error403Forbidden(eris.Cause(err).Error())

	// Missing resources.
	case eris.Is(err, lore.ErrEntryNotFound),
		eris.Is(err, campaign.ErrCampaignNotFound),
		eris.Is(err, campaign.ErrInvalidInviteCode),
		eris.Is(err, character.ErrCharacterNotFound),
		eris.Is(err, session.ErrSessionNotFound),
		eris.Is(err, pin.ErrPinNotFound):
		return huma.Error404NotFound(eris.Cause(err).Error())

	// Conflicts needing a client decision.
	case eris.Is(err, lore.ErrCascadeDecisionRequired):
		return huma.Error409Conflict(eris.Cause(err).Error())
	case eris.Is(err, auth.ErrEmailTaken):
		return huma.Error409Conflict(eris.Cause(err).Error())
	case eris.Is(err, campaign.ErrCharacterRequired):
		return huma.Error409Conflict(eris.Cause(err).Error())

	// Corruption surfaces as a server error, but with its own detail: the
	// fix is operator intervention, not a retry.
	case eris.Is(err, lore.ErrCorruptHierarchy):
		return huma.Error500InternalServerError("the lore hierarchy contains a cycle; contact your DM")

	case eris.Is(err, storage.ErrBucketMissing):
		return huma.Error500InternalServerError("the storage bucket does not exist yet; create it and retry the upload")

	default:
		return huma.Error500InternalServerError(errorFallbackMessage)
	}
}

// writeError renders a huma error straight onto the context, for middleware
// that rejects a request before any handler runs.
func (s *Server) writeError(ctx huma.Context, apiErr huma.StatusError) {
	ctx.SetHeader("Content-Type", "application/problem+json")
	ctx.SetStatus(apiErr.GetStatus())
	body, err := json.Marshal(apiErr)
	if err != nil {
		body = []byte(`{"title":"` + stdhttp.StatusText(apiErr.GetStatus()) + `"}`)
	}
	_, _ = ctx.BodyWriter().Write(body)
}
