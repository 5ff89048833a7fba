// Package summarize condenses research text.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sage/internal/actions"
	"sage/internal/llm_client"
	"sage/internal/logger"
)

const (
	DefaultMaxWords = 500
	failureText     = "Sorry, I couldn't summarize the content at the moment."
)

type Agent struct {
	gen      llm_client.Generator
	maxWords int
	log      *zap.Logger
}

func New(gen llm_client.Generator, maxWords int, log *zap.Logger) *Agent {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return &Agent{gen: gen, maxWords: maxWords, log: logger.OrNop(log).Named("summarize")}
}

// Summarize condenses text to roughly maxWords words.
func (a *Agent) Summarize(ctx context.Context, text string) string {
	prompt := fmt.Sprintf("Please provide a clear, concise, and structured summary of the following text:\n\n%s\n\n"+
		"Limit the summary to approximately %d words or tokens.", text, a.maxWords)
	resp, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.log.Error("summarize failed", zap.Error(err))
		return failureText
	}
	return strings.TrimSpace(resp)
}

func (a *Agent) Handle(ctx context.Context, req actions.Request) (actions.Response, error) {
	if err := ctx.Err(); err != nil {
		return actions.Response{}, err
	}
	return actions.Response{Text: a.Summarize(ctx, req.Content)}, nil
}
