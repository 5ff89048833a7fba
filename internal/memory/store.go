// Package memory is a key/value context store persisted to a single JSON file.
//
// Every Set rewrites the whole file. The store serializes writers with one
// mutex so concurrent tasks cannot interleave a mutation with a rewrite.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"sage/internal/logger"
)

// Entry is one persisted value and the time it was written.
type Entry struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
	log     *zap.Logger
	now     func() time.Time
}

// Open loads the store from path. A missing file yields an empty store.
func Open(path string, log *zap.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]Entry),
		log:     logger.OrNop(log).Named("memory"),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Debug("memory file not found, starting empty", zap.String("path", path))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parse memory file %s: %w", path, err)
	}
	s.log.Info("memory loaded", zap.String("path", path), zap.Int("entries", len(s.entries)))
	return s, nil
}

// Get returns the entry for key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Set stores value under key and rewrites the backing file. When the
// rewrite fails the previous entry is restored, so memory and file agree.
func (s *Store) Set(key string, value any) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.entries[key]
	e := Entry{Value: value, Timestamp: s.now().UTC()}
	s.entries[key] = e
	if err := s.persistLocked(); err != nil {
		if existed {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return Entry{}, err
	}
	return e, nil
}

// Delete removes key and rewrites the backing file. Missing keys are a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.entries[key]
	if !ok {
		return nil
	}
	delete(s.entries, key)
	if err := s.persistLocked(); err != nil {
		s.entries[key] = prev
		return err
	}
	return nil
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		s.log.Error("memory persist failed", zap.String("path", s.path), zap.Error(err))
		return err
	}
	return nil
}

// writeFileAtomic writes to a temp file in the target directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create folder: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".memory-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write to file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("could not replace file: %w", err)
	}
	return nil
}

// TaskKey is the key under which a task's latest pipeline outcome is kept.
func TaskKey(taskID string) string {
	return "task:" + taskID
}
