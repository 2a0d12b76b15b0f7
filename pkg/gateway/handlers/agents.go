package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/agents/selection"
	"github.com/chorus-hq/chorus-agents/pkg/agents/summary"
	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

// Narrow service surfaces so handler tests can stub the agents.

type QuestionService interface {
	Next(ctx context.Context, req *core.QuestionRequest) (*core.Question, error)
}

type QualityService interface {
	Score(ctx context.Context, req *core.QualityRequest) (*core.QualityScores, error)
}

type SummaryService interface {
	Session(ctx context.Context, sessionID string) (*store.SessionSummary, error)
	AggregateStudy(ctx context.Context, studyID string) (*summary.Aggregate, error)
	Study(ctx context.Context, studyID string) (*summary.Overview, error)
}

type SelectionService interface {
	Select(ctx context.Context, req *selection.Request) (*selection.Result, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// QuestionHandler serves POST /api/agents/question.
type QuestionHandler struct {
	Service QuestionService
	Logger  *slog.Logger
}

func (h QuestionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req core.QuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeBadRequest(w, r, "sessionId is required")
		return
	}
	q, err := h.Service.Next(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// QualityHandler serves POST /api/agents/quality.
type QualityHandler struct {
	Service QualityService
	Logger  *slog.Logger
}

func (h QualityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req core.QualityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.QuestionText) == "" || strings.TrimSpace(req.AnswerText) == "" {
		writeBadRequest(w, r, "questionText and answerText are required")
		return
	}
	scores, err := h.Service.Score(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

// SummaryHandler serves POST /api/agents/summary.
type SummaryHandler struct {
	Service SummaryService
	Logger  *slog.Logger
}

type sessionSummaryResponse struct {
	SessionID     string   `json:"session_id"`
	KeyInsights   []string `json:"key_insights"`
	Sentiment     string   `json:"sentiment"`
	Themes        []string `json:"themes"`
	NotableQuotes []string `json:"notable_quotes"`
	SummaryText   string   `json:"summary_text"`
	CreatedAt     string   `json:"created_at"`
}

func (h SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeBadRequest(w, r, "sessionId is required")
		return
	}
	s, err := h.Service.Session(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionSummaryResponse{
		SessionID:     s.SessionID,
		KeyInsights:   s.KeyInsights,
		Sentiment:     s.Sentiment,
		Themes:        s.Themes,
		NotableQuotes: s.NotableQuotes,
		SummaryText:   s.SummaryText,
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// AggregateHandler serves POST /api/agents/aggregate-summary.
type AggregateHandler struct {
	Service SummaryService
	Logger  *slog.Logger
}

func (h AggregateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		StudyID string `json:"studyId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.StudyID) == "" {
		writeBadRequest(w, r, "studyId is required")
		return
	}
	agg, err := h.Service.AggregateStudy(r.Context(), req.StudyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// OverviewHandler serves POST /api/agents/overview.
type OverviewHandler struct {
	Service SummaryService
	Logger  *slog.Logger
}

func (h OverviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		StudyID string `json:"studyId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.StudyID) == "" {
		writeBadRequest(w, r, "studyId is required")
		return
	}
	overview, err := h.Service.Study(r.Context(), req.StudyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// SelectionHandler serves POST /api/agents/participant-selection.
type SelectionHandler struct {
	Service SelectionService
	Logger  *slog.Logger
}

func (h SelectionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req selection.Request
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.StudyID) == "" {
		writeBadRequest(w, r, "studyId is required")
		return
	}
	result, err := h.Service.Select(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TranscribeHandler serves POST /api/agents/transcribe: fetch audio from a
// URL and run it through speech-to-text.
type TranscribeHandler struct {
	STT          Transcriber
	HTTPClient   *http.Client
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

func (h TranscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req struct {
		AudioURL string `json:"audioUrl"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := url.Parse(strings.TrimSpace(req.AudioURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeBadRequest(w, r, "audioUrl must be an http(s) url")
		return
	}

	timeout := h.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	body, filename, err := h.fetch(ctx, u)
	if err != nil {
		writeError(w, r, core.TransientError("handlers.Transcribe", "fetch audio", err))
		return
	}
	defer body.Close()

	text, err := h.STT.Transcribe(ctx, body, filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h TranscribeHandler) fetch(ctx context.Context, u *url.URL) (io.ReadCloser, string, error) {
	client := h.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %d fetching audio", resp.StatusCode)
	}

	filename := path.Base(u.Path)
	if filename == "." || filename == "/" || filename == "" {
		filename = "audio.wav"
	}
	return resp.Body, filename, nil
}
