package domain

import "context"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// RequireRole returns the context actor when it holds the required role.
func RequireRole(ctx context.Context, required string) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, Unauthenticatedf("authentication required")
	}
	if !RoleSatisfies(actor.Role, required) {
		return Actor{}, Forbiddenf("%s role required", required)
	}
	return actor, nil
}

// ActorName is the username recorded in createdBy, empty without an actor.
func ActorName(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.Username
}
