package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/secopshq/ngsiem-mcp/internal/config"
)

func newAuthServer(apiKey string, skipAuth bool) *Server {
	return &Server{
		cfg: &config.Config{APIKey: apiKey, SkipAuth: skipAuth},
		log: zerolog.Nop(),
	}
}

func TestRequireBearerAuth(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		apiKey     string
		skipAuth   bool
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid token",
			apiKey:     "sekrit",
			authHeader: "Bearer sekrit",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong token",
			apiKey:     "sekrit",
			authHeader: "Bearer wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			apiKey:     "sekrit",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			apiKey:     "sekrit",
			authHeader: "Basic sekrit",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "case-insensitive scheme",
			apiKey:     "sekrit",
			authHeader: "bearer sekrit",
			wantStatus: http.StatusOK,
		},
		{
			name:       "skip auth bypasses check",
			skipAuth:   true,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newAuthServer(tt.apiKey, tt.skipAuth)
			handler := s.requireBearerAuth(okHandler)

			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}
