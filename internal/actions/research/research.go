// Package research gathers raw material for a query from the text generator,
// optionally grounded in web results, document excerpts and prior task memory.
package research

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"sage/internal/actions"
	"sage/internal/llm_client"
	"sage/internal/logger"
	"sage/internal/memory"
	"sage/internal/search"
	"sage/internal/utils"
)

const (
	DefaultNumResults = 5
	failureText       = "Sorry, I couldn't fetch research data at the moment."
)

// Retriever returns the document chunks most relevant to a query.
type Retriever interface {
	Retrieve(docID, query string, topK int) []string
}

// MemoryReader reads task context written by earlier runs.
type MemoryReader interface {
	Get(key string) (memory.Entry, bool)
}

type Options struct {
	// Searcher is consulted only when non-nil.
	Searcher   search.Searcher
	NumResults int
	Documents  Retriever
	TopK       int
	Memory     MemoryReader
}

type Agent struct {
	gen  llm_client.Generator
	opts Options
	log  *zap.Logger
}

func New(gen llm_client.Generator, opts Options, log *zap.Logger) *Agent {
	if opts.NumResults <= 0 {
		opts.NumResults = DefaultNumResults
	}
	return &Agent{gen: gen, opts: opts, log: logger.OrNop(log).Named("research")}
}

func (a *Agent) Handle(ctx context.Context, req actions.Request) (actions.Response, error) {
	if err := ctx.Err(); err != nil {
		return actions.Response{}, err
	}
	log := a.log.With(zap.String("task_id", req.TaskID))

	var web string
	if a.opts.Searcher != nil {
		log.Info("performing web search", zap.String("query", req.Query))
		web = search.FormatResults(a.opts.Searcher.Search(ctx, req.Query, a.opts.NumResults))
	}

	var excerpts string
	if req.DocumentID != "" && a.opts.Documents != nil {
		excerpts = strings.Join(a.opts.Documents.Retrieve(req.DocumentID, req.Query, a.opts.TopK), "\n\n")
	}

	prompt := buildPrompt(req.Query, req.Context, a.priorSummary(req.TaskID), excerpts, web)
	resp, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		log.Error("research failed", zap.Error(err))
		return actions.Response{Text: failureText}, nil
	}
	log.Info("research completed")
	return actions.Response{Text: strings.TrimSpace(resp)}, nil
}

func (a *Agent) priorSummary(taskID string) string {
	if a.opts.Memory == nil || taskID == "" {
		return ""
	}
	entry, ok := a.opts.Memory.Get(memory.TaskKey(taskID))
	if !ok {
		return ""
	}
	obj, ok := entry.Value.(map[string]any)
	if !ok {
		return ""
	}
	summary, err := utils.StringField(obj, "summary")
	if err != nil {
		return ""
	}
	return summary
}

func buildPrompt(query, extra, prior, excerpts, web string) string {
	var sb strings.Builder
	sb.WriteString("Research thoroughly on the following topic:\n" + query + "\n")
	if extra != "" {
		sb.WriteString("Use this context to refine your research:\n" + extra + "\n")
	}
	if prior != "" {
		sb.WriteString("Build on these earlier findings for the same task:\n" + prior + "\n")
	}
	if excerpts != "" {
		sb.WriteString("Relevant excerpts from the attached document:\n" + excerpts + "\n")
	}
	if web != "" {
		sb.WriteString("Also consider these recent web search results:\n" + web + "\n")
	}
	sb.WriteString("Provide detailed, accurate, and well-structured information.")
	return sb.String()
}
