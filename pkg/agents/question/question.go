// Package question generates the next interview question from the research
// background, the participant profile, and the conversation so far.
package question

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/llm"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

const systemPrompt = `You are an elite qualitative researcher conducting a semi-structured interview to gather deep, rich data that answers the root research questions provided in the context.

## YOUR OBJECTIVES
1. Uncover the "why": do not settle for surface-level facts. Understand motivations, mental models, emotions, and decision-making processes.
2. Bridge to the root questions: every question must serve the root research questions. If the conversation drifts, gently guide it back.
3. Follow the energy: if the participant is passionate about a topic, dig deeper there.
4. Maintain rapport: be conversational, empathetic, and professional.

## PROMPTING STRATEGY
- Laddering: "Why is that important to you?" to move from attributes to values.
- Clarification: "Can you walk me through that specifically?"
- Contrast: "How is this different from your previous experience?"

## CRITICAL CONSTRAINTS
- Generate EXACTLY ONE follow-up question.
- Do NOT number the question.
- Do NOT include an explanation or rationale, just the question.
- Do NOT be repetitive. If we already know the answer, move on.
- Use the good/bad question examples as a style guide for tone and structure.`

// Agent produces interview questions.
type Agent struct {
	store store.Store
	gen   llm.Generator
	log   *slog.Logger
}

// New creates a question agent.
func New(st store.Store, gen llm.Generator, log *slog.Logger) *Agent {
	return &Agent{store: st, gen: gen, log: log}
}

// Next returns the next question. An empty conversation history with a
// resolvable research question yields the seed question verbatim; otherwise
// the model generates a follow-up from the assembled context.
func (a *Agent) Next(ctx context.Context, req *core.QuestionRequest) (*core.Question, error) {
	var rq *store.ResearchQuestion
	if req.QuestionID != "" {
		var err error
		rq, err = a.store.ResearchQuestion(ctx, req.QuestionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			a.log.Warn("research question lookup failed", "question_id", req.QuestionID, "error", err)
		}
	}

	if len(req.ConversationHistory) == 0 && rq != nil && rq.RootQuestion != "" {
		return &core.Question{ID: rq.ID, Text: rq.RootQuestion, Type: core.QuestionSeed}, nil
	}

	var pt *store.Participant
	if req.ParticipantID != "" {
		var err error
		pt, err = a.store.Participant(ctx, req.ParticipantID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			a.log.Warn("participant lookup failed", "participant_id", req.ParticipantID, "error", err)
		}
	}

	prompt := buildPrompt(req, rq, pt)
	text, err := a.gen.GenerateText(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, core.TransientError("question.Next", "question generation failed", err)
	}
	text = strings.Trim(strings.TrimSpace(text), `"'`)
	if text == "" {
		return nil, core.TransientError("question.Next", "model returned an empty question", nil)
	}

	return &core.Question{
		ID:        fmt.Sprintf("dynamic-%s-%d", req.SessionID, len(req.ConversationHistory)),
		Text:      text,
		Type:      core.QuestionDynamic,
		Rationale: "Generated based on conversation flow",
	}, nil
}

func buildPrompt(req *core.QuestionRequest, rq *store.ResearchQuestion, pt *store.Participant) string {
	var parts []string

	if rq != nil {
		fields := [][2]string{
			{"Root Question", rq.RootQuestion},
			{"Specific Product", rq.SpecificProduct},
			{"Target Demographics", rq.Demographics},
			{"Selected Dataset", rq.SelectedDataset},
			{"Other Information", rq.OtherInfo},
			{"Related Questions", rq.OtherQuestions},
		}
		var lines []string
		for _, f := range fields {
			if f[1] != "" {
				lines = append(lines, f[0]+": "+f[1])
			}
		}
		parts = append(parts, "ROOT RESEARCH QUESTIONS & BACKGROUND DATA:\n"+strings.Join(lines, "\n"))
	} else {
		parts = append(parts, fmt.Sprintf("ROOT RESEARCH QUESTIONS:\n(No background data found for ID: %s)", req.QuestionID))
	}

	if len(req.GoodQuestions) > 0 {
		parts = append(parts, "STRATEGY - EMULATE THESE QUESTION TYPES:\n- "+strings.Join(req.GoodQuestions, "\n- "))
	}
	if len(req.BadQuestions) > 0 {
		parts = append(parts, "STRATEGY - AVOID THESE QUESTION TYPES:\n- "+strings.Join(req.BadQuestions, "\n- "))
	}

	if pt != nil {
		parts = append(parts, "PARTICIPANT PROFILE:\n"+profileText(pt))
	}

	if n := len(req.ConversationHistory); n > 0 {
		if past := req.ConversationHistory[:n-1]; len(past) > 0 {
			var lines []string
			for _, t := range past {
				lines = append(lines, "Q: "+t.Question+"\nA: "+t.Answer)
			}
			parts = append(parts, "CONVERSATION HISTORY:\n"+strings.Join(lines, "\n"))
		}
		last := req.ConversationHistory[n-1]
		parts = append(parts, fmt.Sprintf("IMMEDIATE CONTEXT (Last Turn):\nAgent Asked: %s\nParticipant Responded: %s", last.Question, last.Answer))
	}

	return strings.Join(parts, "\n\n====================\n\n") +
		"\n\n====================\n\nTASK: Based on the ROOT RESEARCH QUESTIONS and the IMMEDIATE CONTEXT above, generate the single most high-value follow-up question now."
}

func profileText(pt *store.Participant) string {
	var parts []string
	if pt.FullName != "" {
		parts = append(parts, "Name: "+pt.FullName)
	}
	var demos []string
	if pt.Age > 0 {
		demos = append(demos, fmt.Sprintf("Age: %d", pt.Age))
	}
	if pt.Gender != "" {
		demos = append(demos, "Gender: "+pt.Gender)
	}
	if pt.City != "" || pt.Country != "" {
		var loc []string
		if pt.City != "" {
			loc = append(loc, pt.City)
		}
		if pt.Country != "" {
			loc = append(loc, pt.Country)
		}
		demos = append(demos, "Location: "+strings.Join(loc, ", "))
	}
	if pt.Language != "" {
		demos = append(demos, "Language: "+pt.Language)
	}
	if len(demos) > 0 {
		parts = append(parts, "Demographics:\n- "+strings.Join(demos, "\n- "))
	}
	if len(pt.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(pt.Tags, ", "))
	}
	if len(pt.Metadata) > 0 {
		var points []string
		for k, v := range pt.Metadata {
			points = append(points, readableKey(k)+": "+v)
		}
		parts = append(parts, "Additional Background:\n- "+strings.Join(points, "\n- "))
	}
	return strings.Join(parts, "\n")
}

// readableKey turns metadata keys like "job_title" into "Job Title".
func readableKey(k string) string {
	words := strings.Split(k, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
