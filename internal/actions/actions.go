// Package actions defines the pipeline stage kinds and the table that maps
// each kind to its handler.
package actions

import (
	"context"
	"fmt"
)

type Kind int

const (
	KindResearch Kind = iota
	KindSummarize
	KindCritique
	KindStrategy
	numKinds
)

var kindNames = [numKinds]string{
	KindResearch:  "research",
	KindSummarize: "summarize",
	KindCritique:  "critique",
	KindStrategy:  "strategy",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists every stage kind in pipeline order.
func Kinds() []Kind {
	return []Kind{KindResearch, KindSummarize, KindCritique, KindStrategy}
}

// Request is the input to a stage. Fields a stage does not use are ignored.
type Request struct {
	TaskID     string   `json:"task_id,omitempty"`
	Query      string   `json:"query"`
	Goals      []string `json:"goals"`
	Context    string   `json:"context,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
	// Content is the text under work: the research to condense, the summary
	// to critique or the context to strategize from.
	Content string `json:"content,omitempty"`
	// Threshold overrides the critique pass threshold when set.
	Threshold *float64 `json:"threshold,omitempty"`
}

type CritiqueResult struct {
	Score     float64 `json:"score"`
	Passed    bool    `json:"passed"`
	Rationale string  `json:"critique_text"`
}

type Response struct {
	Text     string          `json:"text"`
	Critique *CritiqueResult `json:"critique,omitempty"`
}

// Handler runs a single stage. Handlers convert external failures into
// degraded text; an error return means the stage could not run at all.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

type HandlerFunc func(ctx context.Context, req Request) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Handlers names one handler per stage kind.
type Handlers struct {
	Research  Handler
	Summarize Handler
	Critique  Handler
	Strategy  Handler
}

// Registry is the closed dispatch table from Kind to Handler.
type Registry struct {
	table [numKinds]Handler
}

func NewRegistry(h Handlers) (*Registry, error) {
	r := &Registry{table: [numKinds]Handler{
		KindResearch:  h.Research,
		KindSummarize: h.Summarize,
		KindCritique:  h.Critique,
		KindStrategy:  h.Strategy,
	}}
	for k, handler := range r.table {
		if handler == nil {
			return nil, fmt.Errorf("no handler registered for stage %s", Kind(k))
		}
	}
	return r, nil
}

func (r *Registry) Handler(k Kind) (Handler, error) {
	if k < 0 || k >= numKinds {
		return nil, fmt.Errorf("unknown stage kind: %d", int(k))
	}
	return r.table[k], nil
}

// Execute dispatches req to the handler for k.
func (r *Registry) Execute(ctx context.Context, k Kind, req Request) (Response, error) {
	h, err := r.Handler(k)
	if err != nil {
		return Response{}, err
	}
	return h.Handle(ctx, req)
}
