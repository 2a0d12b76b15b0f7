package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chorus-hq/chorus-agents/pkg/gateway/auth"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/config"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/ratelimit"
	"github.com/chorus-hq/chorus-agents/pkg/interview"
	"github.com/chorus-hq/chorus-agents/pkg/interview/realtime"
)

// InterviewMode selects the audio strategy for a WebSocket session.
type InterviewMode string

const (
	ModeStreamed InterviewMode = "streamed" // provider voice-activity detection
	ModeBatch    InterviewMode = "batch"    // one recorded answer per turn
)

// InterviewHandler upgrades GET /v1/interviews/{session_id}/{realtime|simple}
// to a WebSocket and runs the interview loop on it.
type InterviewHandler struct {
	Mode     InterviewMode
	Config   config.Config
	Store    interview.SessionStore
	Question interview.QuestionService
	Quality  interview.QualityService
	STT      interview.Transcriber
	TTS      interview.Synthesizer
	Limiter  *ratelimit.Limiter
	Logger   *slog.Logger
}

func (h InterviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	if sessionID == "" {
		writeBadRequest(w, r, "session_id is required")
		return
	}
	if !h.originAllowed(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "origin is not allowed"})
		return
	}

	principal := "anonymous"
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		principal = ratelimit.PrincipalKeyFromAPIKey(p.APIKey)
	}
	var permit *ratelimit.Permit
	if h.Limiter != nil {
		dec := h.Limiter.AcquireSession(principal, time.Now())
		if !dec.Allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many concurrent sessions"})
			return
		}
		permit = dec.Permit
		defer permit.Release()
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	log := h.Logger.With("session_id", sessionID, "mode", string(h.Mode))
	log.Info("interview session opened")

	sender := interview.NewSender()
	engine := interview.NewEngine(interview.Config{
		DefaultMaxQuestions: h.Config.DefaultMaxQuestions,
		MinAnswerBytes:      h.Config.MinAnswerBytes,
	}, h.Store, h.Question, h.Quality, h.strategy(sender, log), sender, log)

	mux := interview.NewMux(engine, conn, sender, log)
	mux.IdleTimeout = h.Config.SessionIdleTimeout
	mux.Run(r.Context(), sessionID)

	engine.WaitScoring()
	log.Info("interview session closed", "state", string(engine.State()))
}

func (h InterviewHandler) strategy(sender *interview.Sender, log *slog.Logger) interview.AudioStrategy {
	if h.Mode == ModeStreamed {
		return interview.NewStreamedStrategy(realtime.Config{
			APIKey:            h.Config.OpenAIAPIKey,
			Model:             h.Config.RealtimeModel,
			URL:               h.Config.RealtimeURL,
			Voice:             h.Config.RealtimeVoice,
			SilenceDurationMS: int(h.Config.RealtimeSilence / time.Millisecond),
		}, sender, log)
	}
	return interview.NewBatchStrategy(h.STT, h.TTS, sender, h.Config.MinAnswerBytes, log)
}

func (h InterviewHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
