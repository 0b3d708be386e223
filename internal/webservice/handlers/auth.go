package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lvivas2/formTelecom/internal/config"
)

type sessionKey struct{}

// TokenResolver resolves a bearer token to an analyst session.
type TokenResolver interface {
	Lookup(token string) (config.Session, bool)
}

// Authenticate wraps a handler with bearer token authentication. Requests
// without a resolvable token are rejected with 401 before reaching the
// handler; on success the analyst session is attached to the request context.
func Authenticate(resolver TokenResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="form-revision-service"`)
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		session, ok := resolver.Lookup(token)
		if !ok {
			slog.Warn("Rejected request with unknown token", "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="form-revision-service"`)
			http.Error(w, "Invalid bearer token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFrom returns the analyst session attached by Authenticate.
func SessionFrom(ctx context.Context) (config.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(config.Session)
	return s, ok
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
