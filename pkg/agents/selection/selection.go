// Package selection ranks candidate participants for a study.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/chorus-hq/chorus-agents/pkg/core"
	"github.com/chorus-hq/chorus-agents/pkg/llm"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

const systemPrompt = `You are an expert at selecting research participants for studies.
Evaluate each participant's fit for the study based on:
1. Demographic alignment with target criteria
2. Relevant experience or characteristics (from tags/metadata)
3. Diversity considerations to get varied perspectives
4. Geographic relevance if applicable

For each participant, assign a score from 0.0 to 1.0 indicating fit.
Select the top participants up to the target count.

Respond with JSON:
{"selections": [
  {
    "participant_id": "<id>",
    "selection_score": <0.0-1.0>,
    "selection_reasoning": "<brief explanation>"
  }
]}`

// maxCandidates bounds the prompt size.
const maxCandidates = 100

// Request describes the study and the target pool.
type Request struct {
	StudyID            string            `json:"studyId"`
	TargetCount        int               `json:"targetCount"`
	TargetDemographics map[string]string `json:"targetDemographics"`
}

// Selected is one ranked participant.
type Selected struct {
	ParticipantID      string  `json:"participant_id"`
	SelectionScore     float64 `json:"selection_score"`
	SelectionReasoning string  `json:"selection_reasoning"`
}

// Result is the ranked selection plus pool size.
type Result struct {
	SelectedParticipants []Selected `json:"selectedParticipants"`
	TotalEvaluated       int        `json:"totalEvaluated"`
}

// Agent ranks participants.
type Agent struct {
	store store.Store
	gen   llm.Generator
	log   *slog.Logger
}

// New creates a selection agent.
func New(st store.Store, gen llm.Generator, log *slog.Logger) *Agent {
	return &Agent{store: st, gen: gen, log: log}
}

// Select scores the study's participant pool against the target demographics
// and returns the top TargetCount, highest score first. If the model output
// cannot be decoded, the first TargetCount candidates are returned with a
// default score rather than failing the request.
func (a *Agent) Select(ctx context.Context, req *Request) (*Result, error) {
	study, err := a.store.Study(ctx, req.StudyID)
	if err != nil {
		return nil, core.SetupError("selection.Select", "study not found", err)
	}
	participants, err := a.store.ParticipantsByStudy(ctx, req.StudyID)
	if err != nil {
		return nil, core.TransientError("selection.Select", "load participants", err)
	}
	if len(participants) == 0 {
		return nil, core.SetupError("selection.Select", "no participants exist for study", nil)
	}

	candidates := participants
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	var result struct {
		Selections []Selected `json:"selections"`
	}
	err = a.gen.GenerateJSON(ctx, systemPrompt, buildPrompt(study, req, candidates), &result)
	selections := result.Selections
	if err != nil || len(selections) == 0 {
		if err != nil {
			a.log.Warn("selection model failed, falling back to default scores", "study_id", req.StudyID, "error", err)
		}
		selections = defaultSelections(candidates, req.TargetCount)
	}

	// Rank first; truncating an unsorted response would drop the best fits.
	sort.Slice(selections, func(i, j int) bool {
		return selections[i].SelectionScore > selections[j].SelectionScore
	})
	if req.TargetCount > 0 && len(selections) > req.TargetCount {
		selections = selections[:req.TargetCount]
	}

	return &Result{SelectedParticipants: selections, TotalEvaluated: len(participants)}, nil
}

func buildPrompt(study *store.Study, req *Request, candidates []store.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Study Title: %s\nStudy Description: %s\n\n", study.Title, study.Description)
	b.WriteString("Target Demographics:\n")
	if len(req.TargetDemographics) == 0 {
		b.WriteString("- all\n")
	}
	for k, v := range req.TargetDemographics {
		fmt.Fprintf(&b, "- %s: %s\n", k, v)
	}
	fmt.Fprintf(&b, "\nTarget Participant Count: %d\n\nAvailable Participants:\n", req.TargetCount)
	for _, p := range candidates {
		fmt.Fprintf(&b, "- ID: %s, Name: %s, Age: %d, Gender: %s, Location: %s, %s, Tags: %s\n",
			p.ID, p.FullName, p.Age, p.Gender, p.City, p.Country, strings.Join(p.Tags, ", "))
	}
	fmt.Fprintf(&b, "\nSelect the %d best-fitting participants and explain why.", req.TargetCount)
	return b.String()
}

func defaultSelections(candidates []store.Participant, count int) []Selected {
	if count <= 0 || count > len(candidates) {
		count = len(candidates)
	}
	out := make([]Selected, 0, count)
	for _, p := range candidates[:count] {
		out = append(out, Selected{
			ParticipantID:      p.ID,
			SelectionScore:     0.5,
			SelectionReasoning: "Default selection",
		})
	}
	return out
}
