// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

// StoreKind selects the session store backend.
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StorePostgres StoreKind = "postgres"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Persistence.
	Store       StoreKind
	DatabaseURL string
	Migrate     bool

	// OpenAI (Whisper transcription, speech synthesis, realtime stream).
	OpenAIAPIKey  string
	OpenAIBaseURL string
	WhisperModel  string
	TTSModel      string
	TTSVoice      string

	RealtimeModel   string
	RealtimeURL     string
	RealtimeVoice   string
	RealtimeSilence time.Duration

	// Gemini (question/quality/summary/selection agents).
	GeminiAPIKey      string
	GeminiModel       string
	GeminiTemperature float64

	// Interview behavior.
	DefaultMaxQuestions int
	MinAnswerBytes      int
	SessionIdleTimeout  time.Duration // 0 disables the idle deadline

	// Transcribe-from-URL endpoint.
	TranscribeFetchTimeout time.Duration

	// In-memory limits (per principal).
	LimitRPS                   float64
	LimitBurst                 int
	LimitMaxConcurrentSessions int

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                       envOr("CHORUS_ADDR", ":8080"),
		AuthMode:                   AuthMode(envOr("CHORUS_AUTH_MODE", string(AuthModeDisabled))),
		APIKeys:                    make(map[string]struct{}),
		CORSAllowedOrigins:         make(map[string]struct{}),
		Store:                      StoreKind(envOr("CHORUS_STORE", string(StoreMemory))),
		DatabaseURL:                os.Getenv("CHORUS_DATABASE_URL"),
		Migrate:                    envBoolOr("CHORUS_MIGRATE", false),
		OpenAIAPIKey:               os.Getenv("CHORUS_OPENAI_API_KEY"),
		OpenAIBaseURL:              envOr("CHORUS_OPENAI_BASE_URL", "https://api.openai.com"),
		WhisperModel:               envOr("CHORUS_WHISPER_MODEL", "whisper-1"),
		TTSModel:                   envOr("CHORUS_TTS_MODEL", "tts-1"),
		TTSVoice:                   envOr("CHORUS_TTS_VOICE", "alloy"),
		RealtimeModel:              envOr("CHORUS_REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		RealtimeURL:                envOr("CHORUS_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeVoice:              envOr("CHORUS_REALTIME_VOICE", "alloy"),
		RealtimeSilence:            envDurationOr("CHORUS_REALTIME_SILENCE", 3*time.Second),
		GeminiAPIKey:               os.Getenv("CHORUS_GEMINI_API_KEY"),
		GeminiModel:                envOr("CHORUS_GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTemperature:          envFloat64Or("CHORUS_GEMINI_TEMPERATURE", 0.7),
		DefaultMaxQuestions:        envIntOr("CHORUS_DEFAULT_MAX_QUESTIONS", 10),
		MinAnswerBytes:             envIntOr("CHORUS_MIN_ANSWER_BYTES", 100),
		SessionIdleTimeout:         envDurationOr("CHORUS_SESSION_IDLE_TIMEOUT", 0),
		TranscribeFetchTimeout:     envDurationOr("CHORUS_TRANSCRIBE_FETCH_TIMEOUT", 30*time.Second),
		LimitRPS:                   envFloat64Or("CHORUS_RATE_LIMIT_RPS", 5.0),
		LimitBurst:                 envIntOr("CHORUS_RATE_LIMIT_BURST", 10),
		LimitMaxConcurrentSessions: envIntOr("CHORUS_MAX_CONCURRENT_SESSIONS", 32),
		ReadHeaderTimeout:          envDurationOr("CHORUS_READ_HEADER_TIMEOUT", 10*time.Second),
		HandlerTimeout:             envDurationOr("CHORUS_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:        envDurationOr("CHORUS_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("CHORUS_AUTH_MODE must be one of required|optional|disabled")
	}

	switch cfg.Store {
	case StoreMemory, StorePostgres:
	default:
		return Config{}, fmt.Errorf("CHORUS_STORE must be one of memory|postgres")
	}
	if cfg.Store == StorePostgres && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("CHORUS_DATABASE_URL must be set when CHORUS_STORE=postgres")
	}

	for _, key := range splitCSV(os.Getenv("CHORUS_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}
	for _, origin := range splitCSV(os.Getenv("CHORUS_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("CHORUS_API_KEYS must be set when CHORUS_AUTH_MODE=required")
	}

	if cfg.RealtimeSilence <= 0 {
		return Config{}, fmt.Errorf("CHORUS_REALTIME_SILENCE must be > 0")
	}
	if cfg.GeminiTemperature < 0 || cfg.GeminiTemperature > 2 {
		return Config{}, fmt.Errorf("CHORUS_GEMINI_TEMPERATURE must be in [0, 2]")
	}
	if cfg.DefaultMaxQuestions <= 0 {
		return Config{}, fmt.Errorf("CHORUS_DEFAULT_MAX_QUESTIONS must be > 0")
	}
	if cfg.MinAnswerBytes <= 0 {
		return Config{}, fmt.Errorf("CHORUS_MIN_ANSWER_BYTES must be > 0")
	}
	if cfg.SessionIdleTimeout < 0 {
		return Config{}, fmt.Errorf("CHORUS_SESSION_IDLE_TIMEOUT must be >= 0")
	}
	if cfg.TranscribeFetchTimeout <= 0 {
		return Config{}, fmt.Errorf("CHORUS_TRANSCRIBE_FETCH_TIMEOUT must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("CHORUS_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("CHORUS_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentSessions < 0 {
		return Config{}, fmt.Errorf("CHORUS_MAX_CONCURRENT_SESSIONS must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CHORUS_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("CHORUS_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CHORUS_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
