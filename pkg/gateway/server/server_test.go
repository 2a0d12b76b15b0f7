package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/gateway/config"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

type staticGenerator struct {
	text string
}

func (g staticGenerator) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return g.text, nil
}

func (g staticGenerator) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	return nil
}

func testServer(cfg config.Config) *Server {
	return New(cfg, slog.New(slog.DiscardHandler), Deps{
		Store:     store.NewMemory(),
		Generator: staticGenerator{text: "What brings you here?"},
	})
}

func TestRoutes(t *testing.T) {
	s := testServer(config.Config{
		AuthMode: config.AuthModeDisabled,
		Store:    config.StoreMemory,
	})
	h := s.Handler()

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/agents/question", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/agents/question", `{"sessionId":"s1"}`, http.StatusOK},
		{http.MethodPost, "/api/agents/summary", `{}`, http.StatusBadRequest},
		{http.MethodPost, "/api/agents/participant-selection", `{"studyId":"missing"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}
}

// slowGenerator never answers until the request context expires.
type slowGenerator struct{}

func (slowGenerator) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowGenerator) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHandlerTimeoutBoundsAgentCalls(t *testing.T) {
	s := New(config.Config{
		AuthMode:       config.AuthModeDisabled,
		Store:          config.StoreMemory,
		HandlerTimeout: 20 * time.Millisecond,
	}, slog.New(slog.DiscardHandler), Deps{
		Store:     store.NewMemory(),
		Generator: slowGenerator{},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/agents/question", strings.NewReader(`{"sessionId":"s1"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504 (body %s)", rec.Code, rec.Body)
	}
}

func TestHandlerEnforcesAuth(t *testing.T) {
	s := testServer(config.Config{
		AuthMode: config.AuthModeRequired,
		APIKeys:  map[string]struct{}{"valid-key": {}},
		Store:    config.StoreMemory,
	})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/agents/question", strings.NewReader(`{"sessionId":"s1"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/agents/question", strings.NewReader(`{"sessionId":"s1"}`))
	req.Header.Set("Authorization", "Bearer valid-key")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d (body %s)", rec.Code, rec.Body)
	}
}
