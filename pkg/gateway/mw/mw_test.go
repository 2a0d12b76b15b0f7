package mw

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chorus-hq/chorus-agents/pkg/gateway/auth"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/config"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == "" {
		t.Fatal("no request id in context")
	}
	if rec.Header().Get("X-Request-ID") != got {
		t.Errorf("header = %q, ctx = %q", rec.Header().Get("X-Request-ID"), got)
	}
}

func TestRequestIDHonorsClientHeader(t *testing.T) {
	h := RequestID(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req_client")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "req_client" {
		t.Errorf("header = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestAuthModes(t *testing.T) {
	cfg := config.Config{
		AuthMode: config.AuthModeRequired,
		APIKeys:  map[string]struct{}{"valid-key": {}},
	}

	tests := []struct {
		name       string
		mode       config.AuthMode
		authz      string
		wantStatus int
	}{
		{"required missing", config.AuthModeRequired, "", http.StatusUnauthorized},
		{"required wrong", config.AuthModeRequired, "Bearer nope", http.StatusUnauthorized},
		{"required valid", config.AuthModeRequired, "Bearer valid-key", http.StatusOK},
		{"optional missing", config.AuthModeOptional, "", http.StatusOK},
		{"optional wrong", config.AuthModeOptional, "Bearer nope", http.StatusUnauthorized},
		{"disabled", config.AuthModeDisabled, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.AuthMode = tt.mode
			h := Auth(c, okHandler())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthAcceptsQueryParamForWebSockets(t *testing.T) {
	cfg := config.Config{
		AuthMode: config.AuthModeRequired,
		APIKeys:  map[string]struct{}{"valid-key": {}},
	}
	var principal *auth.Principal
	h := Auth(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = auth.PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/interviews/s1/simple?api_key=valid-key", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if principal == nil || principal.APIKey != "valid-key" {
		t.Errorf("principal = %+v", principal)
	}
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	h := Recover(slog.New(slog.DiscardHandler), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.Config{CORSAllowedOrigins: map[string]struct{}{"https://app.example.com": {}}}

	req := httptest.NewRequest(http.MethodOptions, "/api/agents/question", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	CORS(cfg, okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	CORS(cfg, okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unlisted origin status = %d", rec.Code)
	}
}

func TestRateLimitDeniesAfterBurst(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RPS: 0.001, Burst: 1})
	h := RateLimit(limiter, okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/agents/question", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Health stays reachable even when the bucket is dry.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}
