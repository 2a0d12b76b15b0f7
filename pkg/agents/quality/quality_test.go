package quality

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

type fakeGen struct {
	json string
	err  error
}

func (f *fakeGen) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return "", nil
}

func (f *fakeGen) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.json), out)
}

func TestScorePersistsLabel(t *testing.T) {
	m := store.NewMemory()
	studyID := m.AddStudy(store.Study{Title: "t"})
	ptID := m.AddParticipant(store.Participant{StudyID: studyID})
	sessionID := m.AddSession(store.Session{StudyID: studyID, ParticipantID: ptID})

	gen := &fakeGen{json: `{
		"overall_score": 82, "relevance_score": 90, "depth_score": 70,
		"clarity_score": 85, "actionability_score": 60,
		"flags": ["excellent"], "rationale": "specific and vivid"
	}`}
	a := New(m, gen, slog.New(slog.DiscardHandler))

	scores, err := a.Score(context.Background(), &core.QualityRequest{
		SessionID:    sessionID,
		TurnID:       "turn-1",
		QuestionText: "Why espresso?",
		AnswerText:   "It is the only thing that survives my commute.",
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scores.Overall != 82 || scores.Relevance != 90 {
		t.Errorf("scores = %+v", scores)
	}

	labels := m.QualityLabels()
	if len(labels) != 1 {
		t.Fatalf("labels = %d, want 1", len(labels))
	}
	if labels[0].SessionID != sessionID || labels[0].Overall != 82 {
		t.Errorf("label = %+v", labels[0])
	}
}

func TestScoreClamps(t *testing.T) {
	gen := &fakeGen{json: `{"overall_score": 140, "depth_score": -3}`}
	a := New(store.NewMemory(), gen, slog.New(slog.DiscardHandler))

	scores, err := a.Score(context.Background(), &core.QualityRequest{QuestionText: "q", AnswerText: "a"})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scores.Overall != 100 || scores.Depth != 0 {
		t.Errorf("scores not clamped: %+v", scores)
	}
	if scores.Flags == nil {
		t.Error("flags should default to empty slice")
	}
}

func TestScoreModelFailureIsNonEssential(t *testing.T) {
	gen := &fakeGen{err: errors.New("model down")}
	a := New(store.NewMemory(), gen, slog.New(slog.DiscardHandler))

	_, err := a.Score(context.Background(), &core.QualityRequest{QuestionText: "q", AnswerText: "a"})
	if err == nil {
		t.Fatal("want error")
	}
	if core.KindOf(err) != core.KindNonEssential {
		t.Errorf("kind = %q, want non_essential", core.KindOf(err))
	}
}
