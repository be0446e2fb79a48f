package auth

import (
	"context"
)

type contextKey string

const pilotContextKey contextKey = "pilot"

// SetPilotContext attaches verified pilot claims to ctx, for handlers
// downstream of AuthMiddleware.
func SetPilotContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, pilotContextKey, claims)
}

// PilotFromContext retrieves the pilot claims AuthMiddleware stored.
func PilotFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(pilotContextKey).(*Claims)
	return claims, ok
}
