// Package mapping persists the change-id to review-request association.
// The mapping file is the single source of truth for whether a review
// already exists for a commit identity.
package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Entry associates a change id with its review request. The JSON field
// names match the mapping files written by earlier releases.
type Entry struct {
	ReviewID  int    `json:"mr_iid"`
	ReviewURL string `json:"mr_url"`
	ProjectID string `json:"project_id"`
}

// Store is a thread-safe change-id to review mapping backed by a single
// JSON file. All mutation funnels through the store's lock so concurrent
// reconciliation workers never interleave writes.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// NewStore creates a store for the given mapping file path and loads any
// existing entries. A missing or unparsable file degrades to an empty
// mapping, never to an error.
func NewStore(path string) *Store {
	s := &Store{
		path:    path,
		entries: map[string]Entry{},
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupt mapping degrades to "start fresh"
		return
	}
	s.entries = entries
}

// Path returns the mapping file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the entry for a change id.
func (s *Store) Get(changeID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[changeID]
	return e, ok
}

// Put records an entry for a change id and persists the mapping.
func (s *Store) Put(changeID string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[changeID] = e
	return s.save()
}

// Delete removes entries for the given change ids and persists the
// mapping once. Unknown ids are ignored.
func (s *Store) Delete(changeIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range changeIDs {
		delete(s.entries, id)
	}
	return s.save()
}

// Merge records a batch of new entries in a single write. Used after a
// parallel phase so each worker does not trigger its own save.
func (s *Store) Merge(entries map[string]Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range entries {
		s.entries[id] = e
	}
	return s.save()
}

// Snapshot returns a copy of all entries.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}

// Len returns the number of mapping entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// save writes the mapping atomically: a temp file in the same directory
// is renamed over the target so a concurrent reader never observes a
// partial file. Callers must hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".git-stack-mapping-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
