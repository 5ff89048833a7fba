// Package retrieval ingests documents into chunks and ranks chunks against a query.
//
// Ranking is a character-sequence similarity ratio, not embeddings; the
// corpora are small and held in memory.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"sage/internal/docparse"
	"sage/internal/llm_client"
	"sage/internal/logger"
)

const DefaultTopK = 5

var ErrDocumentNotFound = errors.New("document not found")

// IngestError reports a document that could not be parsed.
type IngestError struct {
	Path string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

type Options struct {
	ChunkSize int
	TopK      int
}

type Engine struct {
	parser docparse.Parser
	repo   Repository
	gen    llm_client.Generator
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

func NewEngine(parser docparse.Parser, repo Repository, gen llm_client.Generator, opts Options, log *zap.Logger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	return &Engine{
		parser: parser,
		repo:   repo,
		gen:    gen,
		opts:   opts,
		log:    logger.OrNop(log).Named("retrieval"),
		now:    time.Now,
	}
}

// Ingest parses path, chunks it and stores it under docID (generated when
// empty). Re-ingesting an existing docID replaces it.
func (e *Engine) Ingest(path, docID string) (string, error) {
	if docID == "" {
		docID = uuid.NewString()
	}
	text, err := e.parser.Parse(path)
	if err != nil {
		e.log.Error("Error processing document", zap.String("path", path), zap.Error(err))
		return "", &IngestError{Path: path, Err: err}
	}
	e.IngestText(docID, path, text)
	return docID, nil
}

// IngestText chunks already-extracted text and stores it under docID.
func (e *Engine) IngestText(docID, source, text string) {
	chunks := SplitText(text, e.opts.ChunkSize)
	e.repo.Put(Document{ID: docID, Path: source, Chunks: chunks, IngestedAt: e.now().UTC()})
	e.log.Info("Document processed and stored", zap.String("doc_id", docID), zap.Int("chunks", len(chunks)))
}

// Document returns the stored document.
func (e *Engine) Document(docID string) (Document, error) {
	doc, ok := e.repo.Get(docID)
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID)
	}
	return doc, nil
}

// Remove deletes a stored document.
func (e *Engine) Remove(docID string) bool {
	return e.repo.Delete(docID)
}

type scoredChunk struct {
	score float64
	text  string
}

// Retrieve returns up to topK chunks ordered by descending similarity to
// query. Equal scores keep document order. Unknown documents yield nil.
func (e *Engine) Retrieve(docID, query string, topK int) []string {
	if topK <= 0 {
		topK = e.opts.TopK
	}
	doc, ok := e.repo.Get(docID)
	if !ok {
		e.log.Warn("No document with ID found", zap.String("doc_id", docID))
		return nil
	}

	q := strings.Split(strings.ToLower(query), "")
	scored := make([]scoredChunk, len(doc.Chunks))
	for i, c := range doc.Chunks {
		scored[i] = scoredChunk{score: Similarity(strings.Split(strings.ToLower(c), ""), q), text: c}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if len(scored) > topK {
		scored = scored[:topK]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.text
	}
	return out
}

// Similarity is the SequenceMatcher ratio of two character sequences.
func Similarity(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

// Answer grounds a generated answer in the chunks most similar to query.
func (e *Engine) Answer(ctx context.Context, docID, query string) string {
	excerpts := strings.Join(e.Retrieve(docID, query, e.opts.TopK), "\n\n")
	prompt := buildAnswerPrompt(excerpts, query)

	resp, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		e.log.Error("document answer failed", zap.String("doc_id", docID), zap.Error(err))
		return llm_client.Apology
	}
	return strings.TrimSpace(resp)
}

func buildAnswerPrompt(excerpts, query string) string {
	var sb strings.Builder
	sb.WriteString("You are an AI assistant. Use the following extracted content from a document and answer the question in a helpful way.\n\n")
	sb.WriteString("---DOCUMENT EXCERPTS---\n")
	sb.WriteString(excerpts)
	sb.WriteString("\n\n---USER QUESTION---\n")
	sb.WriteString(query)
	sb.WriteString("\n")
	return sb.String()
}
