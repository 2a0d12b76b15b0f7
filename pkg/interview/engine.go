// Package interview implements the voice interview loop: a per-session state
// machine that asks questions, listens, transcribes, scores, and decides when
// to stop, multiplexed over the client WebSocket and a voice provider stream.
//
// Concurrency model: only the session's dispatch goroutine (see Mux) calls
// engine methods, so engine state is mutated without locks. Transport reader
// goroutines hand frames and provider events to that goroutine over channels.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/interview/protocol"
	"github.com/chorus-hq/chorus-agents/pkg/interview/realtime"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

// State is the engine's position in the interview cycle.
type State string

const (
	StateInit         State = "init"
	StateSpeaking     State = "speaking" // question is being voiced
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateCompleted    State = "completed"  // question threshold reached or explicit end
	StateTerminated   State = "terminated" // disconnect or fatal error
)

// defaultQuestion is asked when a study has neither a research question nor
// pre-written questions.
const defaultQuestion = "Tell me about your experience."

// Config tunes per-session behavior.
type Config struct {
	// DefaultMaxQuestions applies when the study config leaves the turn
	// threshold unset. Defaults to 10.
	DefaultMaxQuestions int

	// MinAnswerBytes is the smallest base64 audio payload worth
	// transcribing; anything shorter records a skipped answer. Defaults
	// to 100.
	MinAnswerBytes int
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxQuestions <= 0 {
		c.DefaultMaxQuestions = 10
	}
	if c.MinAnswerBytes <= 0 {
		c.MinAnswerBytes = 100
	}
	return c
}

// EventSender delivers protocol messages to the client. Implementations must
// be safe for concurrent use.
type EventSender interface {
	Send(v any) error
}

// QuestionService produces the next question to ask.
type QuestionService interface {
	Next(ctx context.Context, req *core.QuestionRequest) (*core.Question, error)
}

// QualityService scores one answered turn.
type QualityService interface {
	Score(ctx context.Context, req *core.QualityRequest) (*core.QualityScores, error)
}

// SessionStore is the slice of persistence the engine needs.
type SessionStore interface {
	SessionDetail(ctx context.Context, sessionID string) (*store.SessionDetail, error)
	SetSessionResearchQuestion(ctx context.Context, sessionID, questionID string) error
	CompleteSession(ctx context.Context, sessionID string, at time.Time) error
	InsertTurn(ctx context.Context, turn *store.Turn) (string, error)
	AssignedQuestionID(ctx context.Context, participantID string) (string, error)
	StudyQuestions(ctx context.Context, studyID string) ([]store.StudyQuestion, error)
}

// Engine drives one interview session.
type Engine struct {
	cfg      Config
	store    SessionStore
	question QuestionService
	quality  QualityService
	strategy AudioStrategy
	out      EventSender
	log      *slog.Logger

	sessionID     string
	studyID       string
	participantID string
	questionID    string
	maxQuestions  int

	state           State
	currentQuestion string
	history         []core.ConversationTurn
	turnIndex       int

	scoring sync.WaitGroup
}

// NewEngine wires a session engine. Start must be called before any other
// method.
func NewEngine(cfg Config, st SessionStore, question QuestionService, quality QualityService, strategy AudioStrategy, out EventSender, log *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		store:    st,
		question: question,
		quality:  quality,
		strategy: strategy,
		out:      out,
		log:      log,
		state:    StateInit,
	}
}

// Start attaches the engine to its session row, resolves the research
// question, brings up the provider stream, and asks the first question.
func (e *Engine) Start(ctx context.Context, sessionID string) error {
	e.sessionID = sessionID

	detail, err := e.store.SessionDetail(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.SetupError("interview.Start", "session not found", err)
		}
		return core.SetupError("interview.Start", "load session", err)
	}
	e.studyID = detail.Session.StudyID
	e.participantID = detail.Session.ParticipantID
	e.maxQuestions = detail.Study.MaxQuestions
	if e.maxQuestions <= 0 {
		e.maxQuestions = e.cfg.DefaultMaxQuestions
	}

	e.questionID = detail.Session.ResearchQuestionID
	if e.questionID == "" {
		if err := e.resolveResearchQuestion(ctx); err != nil {
			return err
		}
	}

	if err := e.strategy.Start(ctx); err != nil {
		return core.SetupError("interview.Start", "connect voice provider", err)
	}

	return e.askNext(ctx)
}

// resolveResearchQuestion falls back to the participant's assignment when the
// session row carries no research question, persisting the resolution back.
// Sessions without any assignment proceed with study questions when the audio
// strategy allows it.
func (e *Engine) resolveResearchQuestion(ctx context.Context) error {
	id, err := e.store.AssignedQuestionID(ctx, e.participantID)
	switch {
	case err == nil:
		e.questionID = id
		if err := e.store.SetSessionResearchQuestion(ctx, e.sessionID, id); err != nil {
			e.log.Warn("persisting resolved research question failed",
				"session_id", e.sessionID, "error", err)
		}
		return nil
	case errors.Is(err, store.ErrNotFound):
		if e.strategy.RequiresResearchQuestion() {
			return core.SetupError("interview.Start", "no research question found for this participant", nil)
		}
		e.log.Info("no research question assignment, proceeding with study questions",
			"session_id", e.sessionID, "participant_id", e.participantID)
		return nil
	default:
		return core.SetupError("interview.Start", "resolve research question assignment", err)
	}
}

// askNext determines the next question, announces it, and has the strategy
// voice it.
func (e *Engine) askNext(ctx context.Context) error {
	text, err := e.nextQuestionText(ctx)
	if err != nil {
		return err
	}
	e.currentQuestion = text
	e.state = StateSpeaking

	if err := e.out.Send(protocol.Question(text)); err != nil {
		return core.TransientError("interview.askNext", "send question", err)
	}
	if err := e.strategy.SpeakQuestion(ctx, e, text); err != nil {
		e.log.Warn("speaking question failed", "session_id", e.sessionID, "error", err)
		e.sendError(fmt.Sprintf("Failed to generate audio: %v", err))
		return nil
	}
	return nil
}

func (e *Engine) nextQuestionText(ctx context.Context) (string, error) {
	// Studies without a research question open with their pre-written
	// questions, or a generic opener as a last resort.
	if len(e.history) == 0 && e.questionID == "" {
		qs, err := e.store.StudyQuestions(ctx, e.studyID)
		if err != nil {
			e.log.Warn("study questions lookup failed", "study_id", e.studyID, "error", err)
		}
		if len(qs) > 0 {
			return qs[0].Text, nil
		}
		return defaultQuestion, nil
	}

	q, err := e.question.Next(ctx, &core.QuestionRequest{
		SessionID:           e.sessionID,
		StudyID:             e.studyID,
		QuestionID:          e.questionID,
		ParticipantID:       e.participantID,
		ConversationHistory: e.historyCopy(),
	})
	if err != nil {
		return "", core.TransientError("interview.askNext", "generate next question", err)
	}
	return q.Text, nil
}

// HandleAudio routes one client audio payload through the active strategy.
func (e *Engine) HandleAudio(ctx context.Context, dataB64 string) {
	if e.Finished() {
		return
	}
	if err := e.strategy.HandleAudio(ctx, e, dataB64); err != nil {
		e.log.Warn("audio handling failed", "session_id", e.sessionID, "error", err)
		e.sendError(fmt.Sprintf("Failed to transcribe audio: %v", err))
	}
}

// HandleEvent routes one provider event through the active strategy.
func (e *Engine) HandleEvent(ctx context.Context, ev realtime.Event) {
	if e.Finished() {
		return
	}
	if err := e.strategy.HandleEvent(ctx, e, ev); err != nil {
		e.log.Warn("provider event handling failed",
			"session_id", e.sessionID, "event", string(ev.Type), "error", err)
		e.sendError(err.Error())
	}
}

// HandleTranscript advances the interview by one turn: persist, record,
// notify, score in the background, then continue or finish. Turn persistence
// completes before the next question is requested; a failed write is
// contained so a database hiccup cannot stall the conversation.
func (e *Engine) HandleTranscript(ctx context.Context, transcript string) error {
	if e.Finished() {
		return nil
	}
	e.state = StateTranscribing
	e.turnIndex++

	turnID, err := e.store.InsertTurn(ctx, &store.Turn{
		SessionID:        e.sessionID,
		QuestionText:     e.currentQuestion,
		AnswerTranscript: transcript,
		TurnIndex:        e.turnIndex,
	})
	if err != nil {
		e.log.Warn("turn persistence failed, continuing",
			"session_id", e.sessionID, "turn_index", e.turnIndex, "error", err)
		turnID = ""
	}

	e.history = append(e.history, core.ConversationTurn{
		Question: e.currentQuestion,
		Answer:   transcript,
	})

	if err := e.out.Send(protocol.Transcript(transcript)); err != nil {
		e.log.Warn("sending transcript failed", "session_id", e.sessionID, "error", err)
	}

	e.scoreAsync(ctx, turnID, e.currentQuestion, transcript)

	if len(e.history) >= e.maxQuestions {
		e.Finish(ctx)
		return nil
	}
	if err := e.askNext(ctx); err != nil {
		e.sendError(err.Error())
		if core.IsSetup(err) {
			e.Abort()
			return err
		}
		// A failed external call costs one question, not the session: go
		// back to listening so the participant can answer again.
		e.log.Warn("next question failed, keeping session alive",
			"session_id", e.sessionID, "error", err)
		e.strategy.ResumeListening(e)
		return nil
	}
	return nil
}

// scoreAsync fires quality scoring without blocking the turn. The next
// question is requested before the score exists; failures are logged and
// never surface to the client.
func (e *Engine) scoreAsync(ctx context.Context, turnID, questionText, answerText string) {
	prior := e.historyCopy()
	if n := len(prior); n > 0 {
		prior = prior[:n-1]
	}
	req := &core.QualityRequest{
		SessionID:           e.sessionID,
		TurnID:              turnID,
		QuestionText:        questionText,
		AnswerText:          answerText,
		ConversationHistory: prior,
	}

	e.scoring.Add(1)
	go func() {
		defer e.scoring.Done()
		if _, err := e.quality.Score(context.WithoutCancel(ctx), req); err != nil {
			e.log.Warn("quality scoring failed", "session_id", e.sessionID, "error", err)
		}
	}()
}

// Finish completes the interview: one status write, one interview_complete
// event, provider closed. Calling it again is a no-op.
func (e *Engine) Finish(ctx context.Context) {
	if e.Finished() {
		return
	}
	e.state = StateCompleted

	if err := e.store.CompleteSession(ctx, e.sessionID, time.Now().UTC()); err != nil {
		e.log.Warn("completing session failed", "session_id", e.sessionID, "error", err)
	}
	if err := e.out.Send(protocol.InterviewComplete()); err != nil {
		e.log.Warn("sending interview_complete failed", "session_id", e.sessionID, "error", err)
	}
	e.closeStrategy()
}

// Abort tears the session down without marking it completed, for disconnects
// and fatal errors. Idempotent, and a no-op after Finish.
func (e *Engine) Abort() {
	if e.Finished() {
		return
	}
	e.state = StateTerminated
	e.closeStrategy()
}

func (e *Engine) closeStrategy() {
	if err := e.strategy.Close(); err != nil {
		e.log.Debug("closing audio strategy", "session_id", e.sessionID, "error", err)
	}
}

// Finished reports whether the engine reached a terminal state.
func (e *Engine) Finished() bool {
	return e.state == StateCompleted || e.state == StateTerminated
}

// State returns the engine's current state.
func (e *Engine) State() State { return e.state }

// Events exposes the provider event stream, nil when the strategy has none.
func (e *Engine) Events() <-chan realtime.Event { return e.strategy.Events() }

// WaitScoring blocks until in-flight quality scoring goroutines finish.
func (e *Engine) WaitScoring() { e.scoring.Wait() }

func (e *Engine) historyCopy() []core.ConversationTurn {
	out := make([]core.ConversationTurn, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) sendError(message string) {
	if err := e.out.Send(protocol.Error(message)); err != nil {
		e.log.Warn("sending error event failed", "session_id", e.sessionID, "error", err)
	}
}
