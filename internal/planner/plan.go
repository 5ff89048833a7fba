package planner

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Plan is the ordered list of stages a pipeline run intends to execute.
type Plan struct {
	Query string   `json:"query"`
	Goals []string `json:"goals"`
	Steps []string `json:"steps"`
}

func (p Plan) String() string {
	var sb strings.Builder
	for i, s := range p.Steps {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, s))
	}
	return sb.String()
}

// CreatePlan describes the pipeline for query and goals. It has no side
// effect beyond logging.
func (t *Tracker) CreatePlan(query string, goals []string) Plan {
	steps := []string{
		fmt.Sprintf("Research: %s", query),
		"Summarize research if it is long",
	}
	if len(goals) == 0 {
		steps = append(steps, "Critique research quality")
	}
	for _, g := range goals {
		steps = append(steps, fmt.Sprintf("Critique against goal: %s", g))
	}
	steps = append(steps, "Formulate strategy")

	plan := Plan{Query: query, Goals: append([]string(nil), goals...), Steps: steps}
	t.log.Info("Plan created", zap.String("query", query), zap.Int("steps", len(steps)))
	return plan
}
