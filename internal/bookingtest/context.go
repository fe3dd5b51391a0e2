package bookingtest

import (
	"context"

	"github.com/NakarmiKevus/neptrip-booking/internal/session"
)

// Role names re-exported so tests can register actors without also importing
// the session package.
const (
	RoleUser  = session.RoleUser
	RoleGuide = session.RoleGuide
	RoleAdmin = session.RoleAdmin
)

type actorKey struct{}

func contextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFrom returns the actor resolved by the auth middleware. Handlers are
// only reachable through that middleware, so the value is always present.
func actorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
