package http

import (
	"context"

	"opentales/app/internal/auth"
)

type contextKey string

const (
	requestIDContextKey contextKey = "opentales/request-id"
	userContextKey      contextKey = "opentales/user"
)

// RequestIDFromContext extracts the request identifier from the context when
// available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// UserFromContext extracts the authenticated account placed on the context by
// the auth middleware.
func UserFromContext(ctx context.Context) *auth.User {
	if ctx == nil {
		return nil
	}
	if user, ok := ctx.Value(userContextKey).(*auth.User); ok {
		return user
	}
	return nil
}
