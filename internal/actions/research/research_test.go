package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/actions"
	"sage/internal/memory"
	"sage/internal/search"
)

type fakeGenerator struct {
	resp   string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.resp, f.err
}

type fakeSearcher struct {
	results []search.Result
	gotN    int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, n int) []search.Result {
	f.gotN = n
	return f.results
}

type fakeRetriever map[string][]string

func (f fakeRetriever) Retrieve(docID, _ string, _ int) []string { return f[docID] }

type fakeMemory map[string]memory.Entry

func (f fakeMemory) Get(key string) (memory.Entry, bool) {
	e, ok := f[key]
	return e, ok
}

func TestHandle_PlainPrompt(t *testing.T) {
	gen := &fakeGenerator{resp: "  findings  "}
	resp, err := New(gen, Options{}, nil).Handle(context.Background(), actions.Request{Query: "quarterly sales"})
	require.NoError(t, err)

	assert.Equal(t, "findings", resp.Text)
	assert.Equal(t, "Research thoroughly on the following topic:\nquarterly sales\n"+
		"Provide detailed, accurate, and well-structured information.", gen.prompt)
}

func TestHandle_FoldsInSources(t *testing.T) {
	gen := &fakeGenerator{resp: "ok"}
	searcher := &fakeSearcher{results: []search.Result{{Title: "Q3", Snippet: "sales up", Link: "https://example.com/q3"}}}
	mem := fakeMemory{memory.TaskKey("t1"): {
		Value:     map[string]any{"summary": "earlier summary"},
		Timestamp: time.Now(),
	}}

	a := New(gen, Options{
		Searcher:  searcher,
		Documents: fakeRetriever{"doc": {"chunk one.", "chunk two."}},
		Memory:    mem,
	}, nil)

	_, err := a.Handle(context.Background(), actions.Request{
		TaskID:     "t1",
		Query:      "sales",
		Context:    "retail only",
		DocumentID: "doc",
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultNumResults, searcher.gotN)
	assert.Contains(t, gen.prompt, "Use this context to refine your research:\nretail only")
	assert.Contains(t, gen.prompt, "earlier findings for the same task:\nearlier summary")
	assert.Contains(t, gen.prompt, "attached document:\nchunk one.\n\nchunk two.")
	assert.Contains(t, gen.prompt, "web search results:\nQ3: sales up (https://example.com/q3)")
}

func TestHandle_IgnoresUnusableMemory(t *testing.T) {
	gen := &fakeGenerator{resp: "ok"}
	mem := fakeMemory{memory.TaskKey("t1"): {Value: "plain string"}}

	_, err := New(gen, Options{Memory: mem}, nil).Handle(context.Background(), actions.Request{TaskID: "t1", Query: "q"})
	require.NoError(t, err)
	assert.NotContains(t, gen.prompt, "earlier findings")
}

func TestHandle_GenerationError(t *testing.T) {
	resp, err := New(&fakeGenerator{err: errors.New("down")}, Options{}, nil).
		Handle(context.Background(), actions.Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, failureText, resp.Text)
}
