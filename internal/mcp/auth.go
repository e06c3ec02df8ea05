package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireBearerAuth wraps an HTTP handler with bearer-token authentication.
// Token comparison is constant time. When SkipAuth is set the check is
// bypassed entirely, which is intended for local development only.
func (s *Server) requireBearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.SkipAuth {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.APIKey)) != 1 {
			s.log.Warn().
				Str("remote", r.RemoteAddr).
				Str("path", r.URL.Path).
				Msg("rejected unauthenticated request")
			w.Header().Set("WWW-Authenticate", `Bearer realm="ngsiem-mcp"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return auth[len(prefix):]
}
