package shared

import "context"

// Actor identifies the authenticated user performing a mutation. It is
// passed explicitly into every service call that stamps audit columns.
type Actor struct {
	ID    int64
	Email string
	Name  string
}

// IsZero reports whether no user is attached.
func (a Actor) IsZero() bool {
	return a.ID == 0
}

// IDPtr returns a nullable user id for audit columns.
func (a Actor) IDPtr() *int64 {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

// SystemActor is used by jobs and CLI commands.
var SystemActor = Actor{Name: "system"}

type actorContextKey struct{}

// ContextWithActor stores the actor resolved by the auth middleware.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor set by the auth middleware. Handlers
// read it once and pass it down explicitly.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
