// Package strategy turns a summary and long-term goals into next steps.
package strategy

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"sage/internal/actions"
	"sage/internal/llm_client"
	"sage/internal/logger"
)

const failureText = "Sorry, I couldn't formulate a strategy at the moment."

type Agent struct {
	gen llm_client.Generator
	log *zap.Logger
}

func New(gen llm_client.Generator, log *zap.Logger) *Agent {
	return &Agent{gen: gen, log: logger.OrNop(log).Named("strategy")}
}

func (a *Agent) PlanNextSteps(ctx context.Context, current, goals string) string {
	prompt := "You are a strategic planner AI.\n" +
		"Given the current context and long-term goals, suggest clear, prioritized next steps and strategies.\n\n" +
		"Current Context:\n" + current + "\n\n" +
		"Long-Term Goals:\n" + goals + "\n\n" +
		"Provide a detailed, actionable plan."
	resp, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.log.Error("strategy failed", zap.Error(err))
		return failureText
	}
	return strings.TrimSpace(resp)
}

// Handle plans from req.Content toward req.Goals.
func (a *Agent) Handle(ctx context.Context, req actions.Request) (actions.Response, error) {
	if err := ctx.Err(); err != nil {
		return actions.Response{}, err
	}
	return actions.Response{Text: a.PlanNextSteps(ctx, req.Content, strings.Join(req.Goals, ", "))}, nil
}
