package shared

import (
	"context"

	"github.com/google/uuid"
)

// ActorContext carries the authenticated actor and resolved tenant for one
// request. The auth boundary constructs it; core services receive it by
// value and never read ambient request state.
type ActorContext struct {
	UserID     int64
	TenantID   uuid.UUID
	SchemaName string
}

type actorContextKey struct{}

// ContextWithActor stores the actor context in ctx.
func ContextWithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor context, reporting whether one was set.
func ActorFromContext(ctx context.Context) (ActorContext, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(ActorContext)
	return actor, ok
}
