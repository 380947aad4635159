package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessiongate"
)

// Authenticator is the subset of *sessiongate.Engine the guard needs.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*sessiongate.Identity, error)
}

// ErrorHandler writes the rejection response for err.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option customizes Guard.
type Option func(*guard)

type guard struct {
	auth    Authenticator
	onError ErrorHandler
}

// WithErrorHandler replaces the default JSON rejection writer.
func WithErrorHandler(h ErrorHandler) Option {
	return func(g *guard) {
		if h != nil {
			g.onError = h
		}
	}
}

// Guard returns middleware that admits only requests carrying a bearer token
// bound to a live session. The identity is available downstream through
// sessiongate.IdentityFromContext.
func Guard(auth Authenticator, opts ...Option) func(http.Handler) http.Handler {
	g := &guard{auth: auth, onError: writeRejection}
	for _, opt := range opts {
		opt(g)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.auth == nil {
				g.onError(w, r, sessiongate.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				g.onError(w, r, sessiongate.ErrUnauthorized)
				return
			}

			id, err := g.auth.Authenticate(r.Context(), token)
			if err != nil {
				g.onError(w, r, err)
				return
			}

			ctx := sessiongate.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	value = strings.TrimSpace(value)
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// StatusFor maps a gate error onto its HTTP status.
func StatusFor(err error) int {
	switch sessiongate.KindOf(err) {
	case sessiongate.KindUnauthorized:
		return http.StatusUnauthorized
	case sessiongate.KindForbidden, sessiongate.KindNotFound:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeRejection(w http.ResponseWriter, _ *http.Request, err error) {
	status := StatusFor(err)
	msg := "forbidden"
	switch status {
	case http.StatusUnauthorized:
		msg = "unauthorized"
	case http.StatusInternalServerError:
		msg = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": msg,
	})
}
