package retrieval

import (
	"sync"
	"time"
)

// Document is an ingested file and its ordered chunks.
type Document struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Chunks     []string  `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Repository stores documents by ID.
type Repository interface {
	Put(doc Document)
	Get(id string) (Document, bool)
	Delete(id string) bool
}

// MemoryRepository is a concurrency-safe in-process Repository.
// Chunk slices are copied on the way in and out so callers never share the
// stored buffer.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string]Document)}
}

func (r *MemoryRepository) Put(doc Document) {
	doc.Chunks = append([]string(nil), doc.Chunks...)
	r.mu.Lock()
	r.docs[doc.ID] = doc
	r.mu.Unlock()
}

func (r *MemoryRepository) Get(id string) (Document, bool) {
	r.mu.RLock()
	doc, ok := r.docs[id]
	r.mu.RUnlock()
	if !ok {
		return Document{}, false
	}
	doc.Chunks = append([]string(nil), doc.Chunks...)
	return doc, true
}

func (r *MemoryRepository) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return false
	}
	delete(r.docs, id)
	return true
}
