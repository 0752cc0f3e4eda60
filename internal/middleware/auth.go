package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/ernit/be-reimbursements/internal/repository"
)

// ActorResolver turns a session token into the acting user. Implemented by
// repository.SessionRepository.
type ActorResolver interface {
	ResolveToken(ctx context.Context, token string) (*repository.User, error)
}

// Authenticate resolves the request's session token and, when valid, puts
// the acting user on the context. An absent or invalid token is not rejected
// here: handlers return UNAUTHORIZED when an operation requires an actor, so
// public routes stay usable behind the same chain.
func Authenticate(resolver ActorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := resolver.ResolveToken(r.Context(), token)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("session resolution failed")
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFrom returns the authenticated user on the context, or nil.
func ActorFrom(ctx context.Context) *repository.User {
	actor, _ := ctx.Value(actorKey).(*repository.User)
	return actor
}

// WithActor returns a context carrying the given actor. Test helper and
// internal tooling entry point.
func WithActor(ctx context.Context, actor *repository.User) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}
