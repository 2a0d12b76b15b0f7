package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store for tests and local development.
type Memory struct {
	mu sync.Mutex

	studies     map[string]Study
	parts       map[string]Participant
	rqs         map[string]ResearchQuestion
	assignments map[string][]string // participant id -> research question ids
	questions   map[string][]StudyQuestion
	sessions    map[string]Session
	turns       map[string][]Turn
	labels      []QualityLabel
	summaries   map[string]SessionSummary // keyed by session id

	// FailTurnInserts makes InsertTurn return an error, for exercising
	// persistence-failure containment.
	FailTurnInserts bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		studies:     make(map[string]Study),
		parts:       make(map[string]Participant),
		rqs:         make(map[string]ResearchQuestion),
		assignments: make(map[string][]string),
		questions:   make(map[string][]StudyQuestion),
		sessions:    make(map[string]Session),
		turns:       make(map[string][]Turn),
		summaries:   make(map[string]SessionSummary),
	}
}

// Seed helpers. Each returns the generated id.

func (m *Memory) AddStudy(st Study) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	m.studies[st.ID] = st
	return st.ID
}

func (m *Memory) AddParticipant(pt Participant) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pt.ID == "" {
		pt.ID = uuid.NewString()
	}
	m.parts[pt.ID] = pt
	return pt.ID
}

func (m *Memory) AddResearchQuestion(rq ResearchQuestion) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rq.ID == "" {
		rq.ID = uuid.NewString()
	}
	m.rqs[rq.ID] = rq
	return rq.ID
}

func (m *Memory) Assign(participantID, researchQuestionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[participantID] = append(m.assignments[participantID], researchQuestionID)
}

func (m *Memory) AddStudyQuestion(q StudyQuestion) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	m.questions[q.StudyID] = append(m.questions[q.StudyID], q)
	return q.ID
}

func (m *Memory) AddSession(s Session) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusInProgress
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	m.sessions[s.ID] = s
	return s.ID
}

// Session returns a copy of the stored session row, for assertions.
func (m *Memory) Session(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// QualityLabels returns a copy of all stored labels, for assertions.
func (m *Memory) QualityLabels() []QualityLabel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QualityLabel, len(m.labels))
	copy(out, m.labels)
	return out
}

func (m *Memory) SessionDetail(ctx context.Context, sessionID string) (*SessionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	d := SessionDetail{Session: s}
	if st, ok := m.studies[s.StudyID]; ok {
		d.Study = st
	}
	if pt, ok := m.parts[s.ParticipantID]; ok {
		d.Participant = pt
	}
	return &d, nil
}

func (m *Memory) SetSessionResearchQuestion(ctx context.Context, sessionID, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.ResearchQuestionID = questionID
	m.sessions[sessionID] = s
	return nil
}

func (m *Memory) CompleteSession(ctx context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.Status = StatusCompleted
	s.CompletedAt = &at
	m.sessions[sessionID] = s
	return nil
}

func (m *Memory) InsertTurn(ctx context.Context, turn *Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTurnInserts {
		return "", fmt.Errorf("insert turn: storage unavailable")
	}
	for _, t := range m.turns[turn.SessionID] {
		if t.TurnIndex == turn.TurnIndex {
			return "", fmt.Errorf("insert turn: duplicate turn_index %d for session %s", turn.TurnIndex, turn.SessionID)
		}
	}
	t := *turn
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	m.turns[turn.SessionID] = append(m.turns[turn.SessionID], t)
	return t.ID, nil
}

func (m *Memory) TurnsBySession(ctx context.Context, sessionID string) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.turns[sessionID]))
	copy(out, m.turns[sessionID])
	sort.Slice(out, func(i, j int) bool { return out[i].TurnIndex < out[j].TurnIndex })
	return out, nil
}

func (m *Memory) AssignedQuestionID(ctx context.Context, participantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.assignments[participantID]
	if len(ids) == 0 {
		return "", ErrNotFound
	}
	return ids[0], nil
}

func (m *Memory) ResearchQuestion(ctx context.Context, id string) (*ResearchQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rq, ok := m.rqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rq, nil
}

func (m *Memory) StudyQuestions(ctx context.Context, studyID string) ([]StudyQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StudyQuestion, len(m.questions[studyID]))
	copy(out, m.questions[studyID])
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *Memory) Participant(ctx context.Context, id string) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pt, ok := m.parts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pt, nil
}

func (m *Memory) Study(ctx context.Context, id string) (*Study, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.studies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (m *Memory) ParticipantsByStudy(ctx context.Context, studyID string) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Participant
	for _, pt := range m.parts {
		if pt.StudyID == studyID {
			out = append(out, pt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CompletedSessionsByStudy(ctx context.Context, studyID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.StudyID == studyID && s.Status == StatusCompleted {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *Memory) InsertQualityLabel(ctx context.Context, label *QualityLabel) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := *label
	l.ID = uuid.NewString()
	l.CreatedAt = time.Now()
	m.labels = append(m.labels, l)
	return l.ID, nil
}

func (m *Memory) UpsertSessionSummary(ctx context.Context, summary *SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss := *summary
	if prev, ok := m.summaries[summary.SessionID]; ok {
		ss.ID = prev.ID
		ss.CreatedAt = prev.CreatedAt
	} else {
		ss.ID = uuid.NewString()
		ss.CreatedAt = time.Now()
	}
	m.summaries[summary.SessionID] = ss
	return nil
}

func (m *Memory) SessionSummariesByStudy(ctx context.Context, studyID string) ([]SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SessionSummary
	for sessionID, ss := range m.summaries {
		s, ok := m.sessions[sessionID]
		if ok && s.StudyID == studyID {
			out = append(out, ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
