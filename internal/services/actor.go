package services

import "context"

type actorKey struct{}

// WithActor returns a context carrying the user on whose behalf writes are
// made. The engine records it in created_by/updated_by where those columns exist.
func WithActor(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

// ActorFrom returns the user stored by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	user, _ := ctx.Value(actorKey{}).(string)
	return user
}
