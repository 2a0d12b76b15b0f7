package summary

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

type fakeGen struct {
	json    string
	prompts []string
}

func (f *fakeGen) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return "", nil
}

func (f *fakeGen) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	f.prompts = append(f.prompts, prompt)
	return json.Unmarshal([]byte(f.json), out)
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func seed(t *testing.T, m *store.Memory) (sessionID, studyID string) {
	t.Helper()
	studyID = m.AddStudy(store.Study{Title: "Commuting"})
	ptID := m.AddParticipant(store.Participant{StudyID: studyID})
	sessionID = m.AddSession(store.Session{StudyID: studyID, ParticipantID: ptID})
	return
}

func TestSessionSummarySkipsSkippedTurns(t *testing.T) {
	m := store.NewMemory()
	sessionID, studyID := seed(t, m)
	ctx := context.Background()

	m.InsertTurn(ctx, &store.Turn{SessionID: sessionID, QuestionText: "q1", AnswerTranscript: "I bike to work.", TurnIndex: 1})
	m.InsertTurn(ctx, &store.Turn{SessionID: sessionID, QuestionText: "q2", AnswerTranscript: core.SkippedAnswer, TurnIndex: 2})

	gen := &fakeGen{json: `{
		"key_insights": ["bikes daily"], "sentiment": "positive",
		"themes": ["commute"], "notable_quotes": ["I bike to work."],
		"summary_text": "An enthusiastic cyclist."
	}`}
	a := New(m, gen, discard())

	ss, err := a.Session(ctx, sessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if ss.Sentiment != "positive" || ss.SummaryText != "An enthusiastic cyclist." {
		t.Errorf("summary = %+v", ss)
	}
	if strings.Contains(gen.prompts[0], core.SkippedAnswer) {
		t.Error("skipped turn leaked into prompt")
	}

	saved, err := m.SessionSummariesByStudy(ctx, studyID)
	if err != nil || len(saved) != 1 {
		t.Fatalf("saved = %v, %v", saved, err)
	}
}

func TestSessionSummaryNoAnsweredTurns(t *testing.T) {
	m := store.NewMemory()
	sessionID, _ := seed(t, m)
	ctx := context.Background()
	m.InsertTurn(ctx, &store.Turn{SessionID: sessionID, QuestionText: "q1", AnswerTranscript: core.SkippedAnswer, TurnIndex: 1})

	a := New(m, &fakeGen{json: `{}`}, discard())
	if _, err := a.Session(ctx, sessionID); !core.IsSetup(err) {
		t.Errorf("err = %v, want setup error", err)
	}
}

func TestAggregateStudyEmpty(t *testing.T) {
	m := store.NewMemory()
	_, studyID := seed(t, m)

	a := New(m, &fakeGen{json: `{}`}, discard())
	agg, err := a.AggregateStudy(context.Background(), studyID)
	if err != nil {
		t.Fatalf("AggregateStudy: %v", err)
	}
	if agg.TotalResponsesAnalyzed != 0 || len(agg.Statistics) != 0 {
		t.Errorf("aggregate = %+v", agg)
	}
}

func TestAggregateStudy(t *testing.T) {
	m := store.NewMemory()
	sessionID, studyID := seed(t, m)
	ctx := context.Background()
	m.InsertTurn(ctx, &store.Turn{SessionID: sessionID, QuestionText: "q1", AnswerTranscript: "Comfort matters most.", TurnIndex: 1})
	m.CompleteSession(ctx, sessionID, time.Now())

	gen := &fakeGen{json: `{
		"statistics": [{"percentage":"100%","description":"value comfort"}],
		"pros": ["comfortable"], "cons": ["expensive"]
	}`}
	a := New(m, gen, discard())

	agg, err := a.AggregateStudy(ctx, studyID)
	if err != nil {
		t.Fatalf("AggregateStudy: %v", err)
	}
	if agg.TotalResponsesAnalyzed != 1 {
		t.Errorf("analyzed = %d", agg.TotalResponsesAnalyzed)
	}
	if len(agg.Statistics) != 1 || agg.Statistics[0].Percentage != "100%" {
		t.Errorf("statistics = %+v", agg.Statistics)
	}
	if !strings.Contains(gen.prompts[0], "Comfort matters most.") {
		t.Error("transcript missing from prompt")
	}
}

func TestStudyOverview(t *testing.T) {
	m := store.NewMemory()
	sessionID, studyID := seed(t, m)
	ctx := context.Background()
	m.UpsertSessionSummary(ctx, &store.SessionSummary{
		SessionID:     sessionID,
		KeyInsights:   []string{"price sensitive"},
		Sentiment:     "mixed",
		Themes:        []string{"cost", "cost"},
		NotableQuotes: []string{"too pricey"},
	})

	gen := &fakeGen{json: `{
		"executive_summary": "Cost dominates.",
		"key_findings": ["price sensitivity"],
		"themes": [{"name":"cost","frequency":2,"description":"price concerns"}],
		"recommendations": ["offer tiers"],
		"participant_quotes": [{"quote":"too pricey","context":"pricing"}]
	}`}
	a := New(m, gen, discard())

	ov, err := a.Study(ctx, studyID)
	if err != nil {
		t.Fatalf("Study: %v", err)
	}
	if ov.ExecutiveSummary != "Cost dominates." {
		t.Errorf("overview = %+v", ov)
	}
	if ov.SentimentDistribution["mixed"] != 1 {
		t.Errorf("sentiments = %v", ov.SentimentDistribution)
	}
	if ov.Metadata["unique_themes"] != 1 {
		t.Errorf("metadata = %v, want themes deduped", ov.Metadata)
	}
}

func TestStudyOverviewNoSummaries(t *testing.T) {
	m := store.NewMemory()
	_, studyID := seed(t, m)
	a := New(m, &fakeGen{json: `{}`}, discard())
	if _, err := a.Study(context.Background(), studyID); !core.IsSetup(err) {
		t.Errorf("err = %v, want setup error", err)
	}
}
