// Package quality scores a question/answer pair on relevance, depth, clarity,
// and actionability, and records the verdict.
package quality

import (
	"context"
	"log/slog"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/llm"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

const systemPrompt = `You are an expert at evaluating qualitative research responses.
Score the following Q&A pair on these dimensions (0-100 scale, 100 is best):

1. RELEVANCE: how relevant is the answer to the question?
2. DEPTH: how detailed and insightful is the response?
3. CLARITY: how clear and understandable is the response?
4. ACTIONABILITY: does the response provide actionable insights?

Also identify any flags:
- "too_short": response is too brief
- "off_topic": response does not address the question
- "unclear": response is confusing or vague
- "generic": response lacks specificity
- "excellent": exceptionally valuable response

Return your evaluation as a JSON object with this structure:
{
  "overall_score": <0-100>,
  "relevance_score": <0-100>,
  "depth_score": <0-100>,
  "clarity_score": <0-100>,
  "actionability_score": <0-100>,
  "flags": [<applicable flags>],
  "rationale": "<brief explanation of scores>"
}`

// Agent scores Q&A pairs.
type Agent struct {
	store store.Store
	gen   llm.Generator
	log   *slog.Logger
}

// New creates a quality agent.
func New(st store.Store, gen llm.Generator, log *slog.Logger) *Agent {
	return &Agent{store: st, gen: gen, log: log}
}

// Score evaluates one Q&A pair and persists a quality label. A failed label
// write is logged but does not fail the call; the scores are still returned.
func (a *Agent) Score(ctx context.Context, req *core.QualityRequest) (*core.QualityScores, error) {
	prompt := "Question: " + req.QuestionText + "\n\nAnswer: " + req.AnswerText + "\n\nEvaluate this Q&A pair:"

	var scores core.QualityScores
	if err := a.gen.GenerateJSON(ctx, systemPrompt, prompt, &scores); err != nil {
		return nil, core.NonEssentialError("quality.Score", "quality scoring failed", err)
	}
	clampScores(&scores)

	if req.SessionID != "" {
		label := &store.QualityLabel{
			SessionID:     req.SessionID,
			TurnID:        req.TurnID,
			Overall:       scores.Overall,
			Relevance:     scores.Relevance,
			Depth:         scores.Depth,
			Clarity:       scores.Clarity,
			Actionability: scores.Actionability,
			Flags:         scores.Flags,
			Rationale:     scores.Rationale,
		}
		if _, err := a.store.InsertQualityLabel(ctx, label); err != nil {
			a.log.Warn("quality label write failed", "session_id", req.SessionID, "error", err)
		}
	}
	return &scores, nil
}

func clampScores(s *core.QualityScores) {
	for _, p := range []*int{&s.Overall, &s.Relevance, &s.Depth, &s.Clarity, &s.Actionability} {
		if *p < 0 {
			*p = 0
		}
		if *p > 100 {
			*p = 100
		}
	}
	if s.Flags == nil {
		s.Flags = []string{}
	}
}
