package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/autama/autama/backend/internal/model/user"
	"github.com/autama/autama/backend/pkg/utils"
)

// Authenticator resolves an API token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (user.User, error)
}

type ctxKey struct{}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(user.User)
	return u, ok
}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// Authenticate reads "Authorization: Token <key>" and attaches the user.
// Requests without credentials pass through anonymously. A malformed header
// or an unknown token is rejected.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, present := tokenFromRequest(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}
			if key == "" {
				utils.RespondError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			u, err := auth.Authenticate(r.Context(), key)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[auth] rejected token: %v", err)
				}
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// tokenFromRequest accepts the Authorization header, or a "token" query
// parameter for clients that cannot set headers (EventSource, WebSocket).
// The bool reports whether credentials were sent at all; the key is empty
// when the header is not a "Token <key>" header.
func tokenFromRequest(r *http.Request) (string, bool) {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, key, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Token") {
			return "", true
		}
		return strings.TrimSpace(key), true
	}
	if key := strings.TrimSpace(r.URL.Query().Get("token")); key != "" {
		return key, true
	}
	return "", false
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			utils.RespondError(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff rejects requests from non-staff users.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}
		if !u.IsStaff {
			utils.RespondError(w, http.StatusForbidden, "staff permission required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
