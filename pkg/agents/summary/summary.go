// Package summary analyzes finished interviews: per-session summaries,
// study-level aggregate statistics, and full study reports.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/llm"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

const sessionSystemPrompt = `You are an expert at analyzing qualitative research interviews.
Analyze the following interview and provide:

1. Key Insights: 3-5 most important takeaways
2. Sentiment: overall participant sentiment (positive, neutral, negative, mixed)
3. Themes: main topics/themes discussed
4. Notable Quotes: 2-3 most interesting or revealing quotes
5. Summary: a concise paragraph summarizing the interview

Return your analysis as JSON with this structure:
{
  "key_insights": [<list of insights>],
  "sentiment": "<sentiment>",
  "themes": [<list of themes>],
  "notable_quotes": [<list of quotes>],
  "summary_text": "<summary paragraph>"
}`

const aggregateSystemPrompt = `You are a research analyst. Summarize interview transcripts for a research study.
Return JSON only with:
{"statistics":[{"percentage":"<percent>%","description":"<stat>"}], "pros":[...], "cons":[...]}

Use 3-6 statistics. Percentages should be whole numbers. Pros and cons should be concise bullet phrases.`

const overviewSystemPrompt = `You are an expert research analyst synthesizing qualitative customer research data.
Create a comprehensive study report that includes:

1. Executive Summary: high-level overview of findings (2-3 paragraphs)
2. Key Findings: 5-7 most important discoveries across all interviews
3. Themes: main themes with frequency and description
4. Recommendations: 3-5 actionable recommendations based on findings
5. Representative Quotes: the most impactful quotes

Return as JSON:
{
  "executive_summary": "<summary>",
  "key_findings": [<findings>],
  "themes": [{"name": "<theme>", "frequency": <count>, "description": "<desc>"}],
  "recommendations": [<recommendations>],
  "participant_quotes": [{"quote": "<quote>", "context": "<context>"}]
}`

// Statistic is one aggregate finding with its prevalence.
type Statistic struct {
	Percentage  string `json:"percentage"`
	Description string `json:"description"`
}

// Aggregate is the study-level statistics report.
type Aggregate struct {
	StudyID                string      `json:"study_id"`
	Statistics             []Statistic `json:"statistics"`
	Pros                   []string    `json:"pros"`
	Cons                   []string    `json:"cons"`
	TotalResponsesAnalyzed int         `json:"total_responses_analyzed"`
	GeneratedAt            string      `json:"generated_at"`
}

// Theme is one recurring topic in an Overview.
type Theme struct {
	Name        string `json:"name"`
	Frequency   int    `json:"frequency"`
	Description string `json:"description"`
}

// Quote is a representative participant quote with context.
type Quote struct {
	Quote   string `json:"quote"`
	Context string `json:"context"`
}

// Overview is the full study report.
type Overview struct {
	StudyID               string         `json:"study_id"`
	ExecutiveSummary      string         `json:"executive_summary"`
	KeyFindings           []string       `json:"key_findings"`
	Themes                []Theme        `json:"themes"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	Recommendations       []string       `json:"recommendations"`
	ParticipantQuotes     []Quote        `json:"participant_quotes"`
	Metadata              map[string]int `json:"metadata"`
}

// Agent produces session and study analyses.
type Agent struct {
	store store.Store
	gen   llm.Generator
	log   *slog.Logger
}

// New creates a summary agent.
func New(st store.Store, gen llm.Generator, log *slog.Logger) *Agent {
	return &Agent{store: st, gen: gen, log: log}
}

// Session summarizes one interview from its stored turns and persists the
// result. Skipped turns are excluded from the conversation text.
func (a *Agent) Session(ctx context.Context, sessionID string) (*store.SessionSummary, error) {
	turns, err := a.store.TurnsBySession(ctx, sessionID)
	if err != nil {
		return nil, core.TransientError("summary.Session", "load turns", err)
	}
	conversation := conversationText(turns)
	if conversation == "" {
		return nil, core.SetupError("summary.Session", "session has no answered turns", nil)
	}

	var result struct {
		KeyInsights   []string `json:"key_insights"`
		Sentiment     string   `json:"sentiment"`
		Themes        []string `json:"themes"`
		NotableQuotes []string `json:"notable_quotes"`
		SummaryText   string   `json:"summary_text"`
	}
	if err := a.gen.GenerateJSON(ctx, sessionSystemPrompt, "Interview:\n\n"+conversation, &result); err != nil {
		return nil, core.TransientError("summary.Session", "summary generation failed", err)
	}

	ss := &store.SessionSummary{
		SessionID:     sessionID,
		KeyInsights:   result.KeyInsights,
		Sentiment:     result.Sentiment,
		Themes:        result.Themes,
		NotableQuotes: result.NotableQuotes,
		SummaryText:   result.SummaryText,
	}
	if err := a.store.UpsertSessionSummary(ctx, ss); err != nil {
		return nil, core.PersistenceError("summary.Session", "save summary", err)
	}
	return ss, nil
}

// AggregateStudy analyzes the transcripts of every completed session in a
// study and produces percentages plus pros/cons.
func (a *Agent) AggregateStudy(ctx context.Context, studyID string) (*Aggregate, error) {
	sessions, err := a.store.CompletedSessionsByStudy(ctx, studyID)
	if err != nil {
		return nil, core.TransientError("summary.AggregateStudy", "load sessions", err)
	}
	if len(sessions) == 0 {
		return &Aggregate{
			StudyID:     studyID,
			Statistics:  []Statistic{},
			Pros:        []string{},
			Cons:        []string{},
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		}, nil
	}

	var transcripts []string
	for _, s := range sessions {
		turns, err := a.store.TurnsBySession(ctx, s.ID)
		if err != nil {
			a.log.Warn("skipping session with unreadable turns", "session_id", s.ID, "error", err)
			continue
		}
		if text := conversationText(turns); text != "" {
			transcripts = append(transcripts, text)
		}
	}

	prompt := fmt.Sprintf("Transcripts (%d sessions):\n\n%s", len(sessions),
		truncate(strings.Join(transcripts, "\n\n---\n\n"), 48000))

	var result struct {
		Statistics []Statistic `json:"statistics"`
		Pros       []string    `json:"pros"`
		Cons       []string    `json:"cons"`
	}
	if err := a.gen.GenerateJSON(ctx, aggregateSystemPrompt, prompt, &result); err != nil {
		return nil, core.TransientError("summary.AggregateStudy", "aggregate generation failed", err)
	}

	return &Aggregate{
		StudyID:                studyID,
		Statistics:             result.Statistics,
		Pros:                   result.Pros,
		Cons:                   result.Cons,
		TotalResponsesAnalyzed: len(sessions),
		GeneratedAt:            time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Study builds a full study report from the stored per-session summaries.
func (a *Agent) Study(ctx context.Context, studyID string) (*Overview, error) {
	summaries, err := a.store.SessionSummariesByStudy(ctx, studyID)
	if err != nil {
		return nil, core.TransientError("summary.Study", "load summaries", err)
	}
	if len(summaries) == 0 {
		return nil, core.SetupError("summary.Study", "no session summaries exist for study", nil)
	}

	var (
		insights []string
		themes   []string
		quotes   []string
	)
	sentiments := map[string]int{"positive": 0, "neutral": 0, "negative": 0, "mixed": 0}
	for _, s := range summaries {
		insights = append(insights, s.KeyInsights...)
		themes = append(themes, s.Themes...)
		quotes = append(quotes, s.NotableQuotes...)
		if _, ok := sentiments[s.Sentiment]; ok {
			sentiments[s.Sentiment]++
		}
	}
	uniqueThemes := dedupe(themes)

	var b strings.Builder
	fmt.Fprintf(&b, "Study Analysis Context:\n\nTotal Interviews: %d\n\n", len(summaries))
	fmt.Fprintf(&b, "Sentiment Distribution:\n- Positive: %d\n- Neutral: %d\n- Negative: %d\n- Mixed: %d\n\n",
		sentiments["positive"], sentiments["neutral"], sentiments["negative"], sentiments["mixed"])
	b.WriteString("All Insights:\n")
	for _, s := range cap50(insights) {
		b.WriteString("- " + s + "\n")
	}
	b.WriteString("\nAll Themes:\n")
	for _, s := range uniqueThemes {
		b.WriteString("- " + s + "\n")
	}
	b.WriteString("\nSample Quotes:\n")
	for i, s := range quotes {
		if i >= 10 {
			break
		}
		b.WriteString("- \"" + s + "\"\n")
	}

	var result struct {
		ExecutiveSummary  string   `json:"executive_summary"`
		KeyFindings       []string `json:"key_findings"`
		Themes            []Theme  `json:"themes"`
		Recommendations   []string `json:"recommendations"`
		ParticipantQuotes []Quote  `json:"participant_quotes"`
	}
	if err := a.gen.GenerateJSON(ctx, overviewSystemPrompt, b.String(), &result); err != nil {
		return nil, core.TransientError("summary.Study", "report generation failed", err)
	}

	return &Overview{
		StudyID:               studyID,
		ExecutiveSummary:      result.ExecutiveSummary,
		KeyFindings:           result.KeyFindings,
		Themes:                result.Themes,
		SentimentDistribution: sentiments,
		Recommendations:       result.Recommendations,
		ParticipantQuotes:     result.ParticipantQuotes,
		Metadata: map[string]int{
			"total_interviews": len(summaries),
			"total_insights":   len(insights),
			"unique_themes":    len(uniqueThemes),
		},
	}, nil
}

// conversationText joins answered turns as Q/A blocks, skipping turns the
// participant did not answer.
func conversationText(turns []store.Turn) string {
	var blocks []string
	for _, t := range turns {
		if t.AnswerTranscript == "" || t.AnswerTranscript == core.SkippedAnswer {
			continue
		}
		blocks = append(blocks, "Q: "+t.QuestionText+"\nA: "+t.AnswerTranscript)
	}
	return strings.Join(blocks, "\n\n")
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func cap50(in []string) []string {
	if len(in) > 50 {
		return in[:50]
	}
	return in
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
