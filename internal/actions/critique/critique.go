// Package critique scores content against a goal and decides whether it
// passes the quality gate.
package critique

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"sage/internal/actions"
	"sage/internal/llm_client"
	"sage/internal/logger"
)

const DefaultThreshold = 0.8

const (
	emptyRationale   = "Empty content; critique failed immediately."
	errorRationale   = "Sorry, critique failed due to an error."
	missingRationale = "No detailed critique provided."
)

type Critic struct {
	gen       llm_client.Generator
	threshold float64
	log       *zap.Logger
}

// New returns a Critic whose default pass threshold is threshold, or
// DefaultThreshold when threshold is outside (0,1].
func New(gen llm_client.Generator, threshold float64, log *zap.Logger) *Critic {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Critic{gen: gen, threshold: threshold, log: logger.OrNop(log).Named("critique")}
}

// Critique scores content against goal and passes it when the score reaches
// threshold (the Critic default when outside [0,1]). The gate fails closed:
// empty content and generation errors both yield a zero score.
func (c *Critic) Critique(ctx context.Context, content, goal, extra string, threshold float64) actions.CritiqueResult {
	if strings.TrimSpace(content) == "" {
		return actions.CritiqueResult{Score: 0, Passed: false, Rationale: emptyRationale}
	}
	if threshold < 0 || threshold > 1 {
		threshold = c.threshold
	}

	resp, err := c.gen.Generate(ctx, buildPrompt(content, goal, extra))
	if err != nil {
		c.log.Error("critique generation failed", zap.Error(err))
		return actions.CritiqueResult{Score: 0, Passed: false, Rationale: errorRationale}
	}

	score, rationale := parseResponse(resp)
	return actions.CritiqueResult{
		Score:     score,
		Passed:    score >= threshold,
		Rationale: rationale,
	}
}

// Handle critiques req.Content against all of req.Goals.
func (c *Critic) Handle(ctx context.Context, req actions.Request) (actions.Response, error) {
	if err := ctx.Err(); err != nil {
		return actions.Response{}, err
	}
	threshold := c.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	res := c.Critique(ctx, req.Content, strings.Join(req.Goals, "; "), req.Context, threshold)
	c.log.Info("critique completed",
		zap.String("task_id", req.TaskID),
		zap.Float64("score", res.Score),
		zap.Bool("passed", res.Passed))
	return actions.Response{Text: res.Rationale, Critique: &res}, nil
}

func buildPrompt(content, goal, extra string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert evaluator. Analyze the following content and score how well it satisfies the goal. ")
	sb.WriteString("Score on a scale from 0 (does not satisfy) to 1 (fully satisfies).\n\n")
	sb.WriteString("Goal:\n" + goal + "\n\n")
	sb.WriteString("Content:\n" + content + "\n")
	if extra != "" {
		sb.WriteString("Additional context:\n" + extra + "\n")
	}
	sb.WriteString("Provide a numeric score between 0 and 1 on the first line, then a detailed critique explaining your reasoning.")
	return sb.String()
}

// parseResponse reads the score from the first line and the rationale from
// the rest. Unparseable or out-of-range scores become 0.
func parseResponse(resp string) (float64, string) {
	first, rest, found := strings.Cut(strings.TrimSpace(resp), "\n")

	score, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil || math.IsNaN(score) || score < 0 || score > 1 {
		score = 0
	}

	rationale := strings.TrimSpace(rest)
	if !found || rationale == "" {
		rationale = missingRationale
	}
	return score, rationale
}
