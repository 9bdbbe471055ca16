// Package store is a tiny persisted key/value map used to remember small
// pieces of state between runs, such as the round-robin position of a
// directory loader.
//
// Values are grouped by category and kept in a single indented JSON file:
//
//	{
//	    "images": {
//	        "current_index": 3
//	    }
//	}
//
// The whole file is rewritten on every mutation. Writes go to a temporary
// file that is renamed over the original, so a crash leaves either the old
// or the new document. There is no cross-process locking: one writer is
// assumed.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// ErrKeyNotFound is returned by Update for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// Store is a category -> key -> value map mirrored to a JSON file.
type Store struct {
	mu     sync.RWMutex
	path   string
	data   map[string]map[string]any
	logger *slog.Logger
}

// New loads the store at path. A missing file gives an empty store; an
// unreadable or malformed one is logged and also gives an empty store.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	s.data = s.load()
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() map[string]map[string]any {
	empty := map[string]map[string]any{}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return empty
	}
	if err != nil {
		s.logger.Warn("could not read store, starting empty", "path", s.path, "error", err)
		return empty
	}

	var data map[string]map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn("could not parse store, starting empty", "path", s.path, "error", err)
		return empty
	}
	if data == nil {
		return empty
	}
	for k, v := range data {
		if v == nil {
			data[k] = map[string]any{}
		}
	}
	return data
}

// save writes the document. Callers hold s.mu.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.data, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	// CreateTemp makes the file owner-only; keep the mode of the file being
	// replaced.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to set store mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

// CategoryExists reports whether category is present.
func (s *Store) CategoryExists(category string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[category]
	return ok
}

// KeyExists reports whether key is present in category.
func (s *Store) KeyExists(category, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[category][key]
	return ok
}

// Get returns the value stored under category/key, or def.
func (s *Store) Get(category, key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.data[category][key]; ok {
		return v
	}
	return def
}

// GetInt returns an integer value, or def when the key is missing or does
// not hold a whole number.
func (s *Store) GetInt(category, key string, def int) int {
	switch v := s.Get(category, key, nil).(type) {
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v)
		}
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

// GetCategory returns a copy of all pairs in category.
func (s *Store) GetCategory(category string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data[category]))
	for k, v := range s.data[category] {
		out[k] = v
	}
	return out
}

// Insert sets category/key to value, creating the category if needed, and
// persists the store.
func (s *Store) Insert(category, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[category]; !ok {
		s.data[category] = map[string]any{}
	}
	s.data[category][key] = value
	return s.save()
}

// Update replaces an existing value. It returns ErrKeyNotFound when the key
// is missing.
func (s *Store) Update(category, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[category][key]; !ok {
		return fmt.Errorf("%w: %q in category %q", ErrKeyNotFound, key, category)
	}
	s.data[category][key] = value
	return s.save()
}

// Delete removes category/key. Deleting a missing key is a no-op.
func (s *Store) Delete(category, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[category][key]; !ok {
		return nil
	}
	delete(s.data[category], key)
	return s.save()
}

// InsertCategory creates an empty category if it does not exist.
func (s *Store) InsertCategory(category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[category]; ok {
		return nil
	}
	s.data[category] = map[string]any{}
	return s.save()
}
