// Package ctxutil carries the acting user through context.Context.
// It has no internal dependencies so any layer can import it.
package ctxutil

import (
	"context"
	"strings"
)

type actorKey struct{}

// WithActorID returns a copy of ctx carrying the acting user's ID.
// Surrounding whitespace is dropped; an empty ID leaves ctx unchanged.
func WithActorID(ctx context.Context, userID string) context.Context {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the acting user's ID, or "" if none is set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}
