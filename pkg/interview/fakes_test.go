package interview

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/interview/protocol"
	"github.com/chorus-hq/chorus-agents/pkg/interview/realtime"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recordingSender collects every outbound protocol message.
type recordingSender struct {
	mu   sync.Mutex
	msgs []any
}

func (r *recordingSender) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, v)
	return nil
}

func (r *recordingSender) all() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recordingSender) countType(want string) int {
	n := 0
	for _, m := range r.all() {
		if typeOf(m) == want {
			n++
		}
	}
	return n
}

func typeOf(m any) string {
	switch v := m.(type) {
	case protocol.ServerQuestion:
		return v.Type
	case protocol.ServerTranscript:
		return v.Type
	case protocol.ServerSpeech:
		return v.Type
	case protocol.ServerAudioComplete:
		return v.Type
	case protocol.ServerInterviewComplete:
		return v.Type
	case protocol.ServerError:
		return v.Type
	default:
		return ""
	}
}

// scriptedQuestions returns canned follow-up questions in order. Setting err
// makes every call fail until it is cleared.
type scriptedQuestions struct {
	mu    sync.Mutex
	texts []string
	calls int
	err   error
}

func (s *scriptedQuestions) Next(ctx context.Context, req *core.QuestionRequest) (*core.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(req.ConversationHistory) == 0 && req.QuestionID != "" {
		// Seed question comes from the caller's store in production; tests
		// that exercise the seed path use seedText.
		return &core.Question{ID: req.QuestionID, Text: s.texts[0], Type: core.QuestionSeed}, nil
	}
	s.calls++
	i := s.calls
	if i >= len(s.texts) {
		i = len(s.texts) - 1
	}
	return &core.Question{
		ID:   fmt.Sprintf("dynamic-%s-%d", req.SessionID, len(req.ConversationHistory)),
		Text: s.texts[i],
		Type: core.QuestionDynamic,
	}, nil
}

func (s *scriptedQuestions) followUpCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedQuestions) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// blockingQuality records scoring requests and optionally blocks until
// released, to prove scoring never gates the next turn.
type blockingQuality struct {
	mu      sync.Mutex
	reqs    []*core.QualityRequest
	release chan struct{}
}

func (q *blockingQuality) Score(ctx context.Context, req *core.QualityRequest) (*core.QualityScores, error) {
	q.mu.Lock()
	q.reqs = append(q.reqs, req)
	q.mu.Unlock()
	if q.release != nil {
		<-q.release
	}
	return &core.QualityScores{Overall: 75}, nil
}

func (q *blockingQuality) requests() []*core.QualityRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*core.QualityRequest, len(q.reqs))
	copy(out, q.reqs)
	return out
}

// fakeSTT returns a fixed transcript and counts calls.
type fakeSTT struct {
	mu         sync.Mutex
	transcript string
	err        error
	calls      int
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.transcript, nil
}

func (f *fakeSTT) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeTTS returns fixed audio bytes.
type fakeTTS struct {
	err error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (*core.SpeechAudio, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.SpeechAudio{Data: []byte("opus:" + text), Format: "opus"}, nil
}

// fakeVoiceStream scripts the provider side of a streamed session.
type fakeVoiceStream struct {
	mu       sync.Mutex
	appended []string
	commits  int
	spoken   []string
	events   chan realtime.Event
	closed   bool
}

func newFakeVoiceStream() *fakeVoiceStream {
	return &fakeVoiceStream{events: make(chan realtime.Event, 32)}
}

func (f *fakeVoiceStream) AppendAudio(dataB64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, dataB64)
	return nil
}

func (f *fakeVoiceStream) CommitInput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeVoiceStream) CreateResponse(questionText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, questionText)
	return nil
}

func (f *fakeVoiceStream) Events() <-chan realtime.Event { return f.events }

func (f *fakeVoiceStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeVoiceStream) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

// seedBatchSession stores a study/participant/session with a research
// question already attached, and returns the ids.
func seedBatchSession(t *testing.T, m *store.Memory, maxQuestions int) (sessionID, rqID string) {
	t.Helper()
	studyID := m.AddStudy(store.Study{Title: "Coffee", MaxQuestions: maxQuestions})
	ptID := m.AddParticipant(store.Participant{StudyID: studyID, FullName: "Sam Lee"})
	rqID = m.AddResearchQuestion(store.ResearchQuestion{
		StudyID:      studyID,
		RootQuestion: "How do you brew your coffee?",
	})
	sessionID = m.AddSession(store.Session{
		StudyID:            studyID,
		ParticipantID:      ptID,
		ResearchQuestionID: rqID,
	})
	return
}

// longAnswer builds a base64 payload comfortably above the skip threshold.
func longAnswer() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("pcm-sample-data!", 32)))
}
