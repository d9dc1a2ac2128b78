package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandler bool
	}{
		{
			name:        "listed dashboard origin",
			allowed:     []string{"https://dashboard.pinkhealth.example/"},
			method:      http.MethodGet,
			origin:      "https://dashboard.pinkhealth.example",
			wantOrigin:  "https://dashboard.pinkhealth.example",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "unknown origin gets no headers but still reaches the handler",
			allowed:     []string{"https://dashboard.pinkhealth.example"},
			method:      http.MethodGet,
			origin:      "https://elsewhere.example",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "wildcard echoes the origin",
			allowed:     []string{"*"},
			method:      http.MethodGet,
			origin:      "https://kiosk.example",
			wantOrigin:  "https://kiosk.example",
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:        "no origin header passes through",
			allowed:     []string{"https://dashboard.pinkhealth.example"},
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantHandler: true,
		},
		{
			name:       "preflight short-circuits",
			allowed:    []string{"https://dashboard.pinkhealth.example"},
			method:     http.MethodOptions,
			origin:     "https://dashboard.pinkhealth.example",
			preflight:  true,
			wantOrigin: "https://dashboard.pinkhealth.example",
			wantStatus: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(tt.method, "/api/appointments", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantHandler, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Callback-Secret")
				assert.Equal(t, corsAllowedMethods, rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}
