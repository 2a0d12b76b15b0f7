// Package store persists studies, participants, interview sessions, and the
// records the agents produce. The canonical implementation is Postgres; an
// in-memory implementation backs tests and local development.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// SessionStatus values for interview_sessions.status.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Study carries the interview configuration the engine reads.
type Study struct {
	ID           string
	Title        string
	Description  string
	MaxQuestions int // 0 means unset; callers apply the default
}

// Participant is the interviewee profile used to build prompts.
type Participant struct {
	ID       string
	StudyID  string
	FullName string
	Age      int
	Gender   string
	City     string
	Country  string
	Language string
	Tags     []string
	Metadata map[string]string
}

// ResearchQuestion is the configured root question plus its background data.
type ResearchQuestion struct {
	ID              string
	StudyID         string
	RootQuestion    string
	SpecificProduct string
	Demographics    string
	SelectedDataset string
	OtherInfo       string
	OtherQuestions  string
}

// StudyQuestion is a plain pre-written question for studies that have no
// research-question record.
type StudyQuestion struct {
	ID         string
	StudyID    string
	Text       string
	OrderIndex int
}

// Session is one interview instance.
type Session struct {
	ID                 string
	StudyID            string
	ParticipantID      string
	ResearchQuestionID string // empty when not yet resolved
	Status             string
	StartedAt          time.Time
	CompletedAt        *time.Time
}

// SessionDetail is a session joined with its study and participant.
type SessionDetail struct {
	Session     Session
	Study       Study
	Participant Participant
}

// Turn is one persisted question/answer exchange.
type Turn struct {
	ID               string
	SessionID        string
	QuestionText     string
	AnswerTranscript string
	TurnIndex        int
	CreatedAt        time.Time
}

// QualityLabel is the quality agent's persisted verdict for one turn.
type QualityLabel struct {
	ID            string
	SessionID     string
	TurnID        string // empty when the turn insert failed
	Overall       int
	Relevance     int
	Depth         int
	Clarity       int
	Actionability int
	Flags         []string
	Rationale     string
	CreatedAt     time.Time
}

// SessionSummary is the summary agent's persisted analysis of a session.
type SessionSummary struct {
	ID            string
	SessionID     string
	KeyInsights   []string
	Sentiment     string
	Themes        []string
	NotableQuotes []string
	SummaryText   string
	CreatedAt     time.Time
}

// Store is the full persistence surface used by the agents and handlers.
// The interview engine depends on a narrower interface declared in
// pkg/interview.
type Store interface {
	SessionDetail(ctx context.Context, sessionID string) (*SessionDetail, error)
	SetSessionResearchQuestion(ctx context.Context, sessionID, questionID string) error
	CompleteSession(ctx context.Context, sessionID string, at time.Time) error

	InsertTurn(ctx context.Context, turn *Turn) (string, error)
	TurnsBySession(ctx context.Context, sessionID string) ([]Turn, error)

	AssignedQuestionID(ctx context.Context, participantID string) (string, error)
	ResearchQuestion(ctx context.Context, id string) (*ResearchQuestion, error)
	StudyQuestions(ctx context.Context, studyID string) ([]StudyQuestion, error)
	Participant(ctx context.Context, id string) (*Participant, error)
	Study(ctx context.Context, id string) (*Study, error)
	ParticipantsByStudy(ctx context.Context, studyID string) ([]Participant, error)
	CompletedSessionsByStudy(ctx context.Context, studyID string) ([]Session, error)

	InsertQualityLabel(ctx context.Context, label *QualityLabel) (string, error)
	UpsertSessionSummary(ctx context.Context, summary *SessionSummary) error
	SessionSummariesByStudy(ctx context.Context, studyID string) ([]SessionSummary, error)
}
