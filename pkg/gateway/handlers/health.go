package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chorus-hq/chorus-agents/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Store    string   `json:"store"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeRequired, config.AuthModeOptional, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	if h.Config.AuthMode == config.AuthModeRequired && len(h.Config.APIKeys) == 0 {
		issues = append(issues, "auth_mode=required but no api keys configured")
	}
	switch h.Config.Store {
	case config.StoreMemory, config.StorePostgres:
	default:
		issues = append(issues, "invalid store")
	}
	if h.Config.Store == config.StorePostgres && h.Config.DatabaseURL == "" {
		issues = append(issues, "store=postgres but no database url configured")
	}
	if h.Config.OpenAIAPIKey == "" {
		issues = append(issues, "no openai api key configured")
	}
	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "no gemini api key configured")
	}
	if h.Config.DefaultMaxQuestions <= 0 {
		issues = append(issues, "default_max_questions must be > 0")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:       ok,
		AuthMode: string(h.Config.AuthMode),
		Store:    string(h.Config.Store),
		Issues:   issues,
	})
}
