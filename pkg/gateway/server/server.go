// Package server assembles the gateway: routes, middleware, and the shared
// agents behind them.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/agents/quality"
	"github.com/chorus-hq/chorus-agents/pkg/agents/question"
	"github.com/chorus-hq/chorus-agents/pkg/agents/selection"
	"github.com/chorus-hq/chorus-agents/pkg/agents/summary"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/config"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/handlers"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/mw"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/ratelimit"
	"github.com/chorus-hq/chorus-agents/pkg/llm"
	"github.com/chorus-hq/chorus-agents/pkg/store"
	"github.com/chorus-hq/chorus-agents/pkg/voice/stt"
	"github.com/chorus-hq/chorus-agents/pkg/voice/tts"
)

// Deps are the externally constructed dependencies: the store backend and
// the LLM client are chosen by main (memory vs postgres, live vs test).
type Deps struct {
	Store     store.Store
	Generator llm.Generator
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	deps       Deps
	httpClient *http.Client
	limiter    *ratelimit.Limiter

	question  *question.Agent
	quality   *quality.Agent
	summaries *summary.Agent
	selection *selection.Agent
	whisper   *stt.Whisper
	speech    *tts.OpenAI
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		deps:       deps,
		httpClient: httpClient,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                   cfg.LimitRPS,
			Burst:                 cfg.LimitBurst,
			MaxConcurrentSessions: cfg.LimitMaxConcurrentSessions,
		}),
		question:  question.New(deps.Store, deps.Generator, logger),
		quality:   quality.New(deps.Store, deps.Generator, logger),
		summaries: summary.New(deps.Store, deps.Generator, logger),
		selection: selection.New(deps.Store, deps.Generator, logger),
		whisper:   stt.NewWhisper(cfg.OpenAIAPIKey, cfg.WhisperModel, stt.WithBaseURL(cfg.OpenAIBaseURL), stt.WithHTTPClient(httpClient)),
		speech:    tts.NewOpenAI(cfg.OpenAIAPIKey, cfg.TTSModel, cfg.TTSVoice, tts.WithBaseURL(cfg.OpenAIBaseURL), tts.WithHTTPClient(httpClient)),
	}

	s.routes()
	return s
}

// withTimeout bounds one REST request. The interview WebSocket routes manage
// their own lifetimes and are not wrapped.
func withTimeout(d time.Duration, h http.Handler) http.Handler {
	if d <= 0 {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg})

	agent := func(h http.Handler) http.Handler { return withTimeout(s.cfg.HandlerTimeout, h) }
	s.mux.Handle("/api/agents/question", agent(handlers.QuestionHandler{Service: s.question, Logger: s.logger}))
	s.mux.Handle("/api/agents/quality", agent(handlers.QualityHandler{Service: s.quality, Logger: s.logger}))
	s.mux.Handle("/api/agents/summary", agent(handlers.SummaryHandler{Service: s.summaries, Logger: s.logger}))
	s.mux.Handle("/api/agents/aggregate-summary", agent(handlers.AggregateHandler{Service: s.summaries, Logger: s.logger}))
	s.mux.Handle("/api/agents/overview", agent(handlers.OverviewHandler{Service: s.summaries, Logger: s.logger}))
	s.mux.Handle("/api/agents/participant-selection", agent(handlers.SelectionHandler{Service: s.selection, Logger: s.logger}))
	s.mux.Handle("/api/agents/transcribe", agent(handlers.TranscribeHandler{
		STT:          s.whisper,
		HTTPClient:   s.httpClient,
		FetchTimeout: s.cfg.TranscribeFetchTimeout,
		Logger:       s.logger,
	}))

	s.mux.Handle("GET /v1/interviews/{session_id}/realtime", handlers.InterviewHandler{
		Mode:     handlers.ModeStreamed,
		Config:   s.cfg,
		Store:    s.deps.Store,
		Question: s.question,
		Quality:  s.quality,
		Limiter:  s.limiter,
		Logger:   s.logger,
	})
	s.mux.Handle("GET /v1/interviews/{session_id}/simple", handlers.InterviewHandler{
		Mode:     handlers.ModeBatch,
		Config:   s.cfg,
		Store:    s.deps.Store,
		Question: s.question,
		Quality:  s.quality,
		STT:      s.whisper,
		TTS:      s.speech,
		Limiter:  s.limiter,
		Logger:   s.logger,
	})
}

// Handler returns the full middleware chain around the route mux.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.limiter, h)
	h = mw.Auth(s.cfg, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
