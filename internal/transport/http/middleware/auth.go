package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"socialsync/internal/httputil"
	"socialsync/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserIDKey is the context key for the signed-in user's ID
	UserIDKey contextKey = "user_id"
)

// SessionInfo is what the session gate needs from the daemon.
type SessionInfo interface {
	Active() bool
	UserID() model.ID
}

// LocalToken guards the local API with a shared secret when one is
// configured. Checks the Authorization header first, then the api_token
// cookie. An empty secret disables the check.
func LocalToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					token = parts[1]
				}
			}
			if token == "" {
				if cookie, err := r.Cookie("api_token"); err == nil {
					token = cookie.Value
				}
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				httputil.WriteUnauthorized(w, "Missing or invalid local API token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects requests while no user is signed in to the daemon
// and puts the current user id in the request context.
func RequireSession(s SessionInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Active() {
				httputil.WriteUnauthorized(w, "Not signed in")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, s.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (model.ID, bool) {
	userID, ok := ctx.Value(UserIDKey).(model.ID)
	return userID, ok
}
