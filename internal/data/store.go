package data

import (
	"maps"
	"sync"

	"git.home.luguber.info/inful/press/internal/util/sets"
)

// Store holds resolved data by name. Mutations report the pages that depend on
// the touched name so the caller can mark them dirty.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	tracker *Tracker
}

func NewStore(tracker *Tracker) *Store {
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Store{entries: make(map[string]Entry), tracker: tracker}
}

func (s *Store) Tracker() *Tracker { return s.tracker }

// Set stores e, replacing any entry with the same name, and returns the
// dependents of that name.
func (s *Store) Set(e Entry) []string {
	s.mu.Lock()
	s.entries[e.Name] = e
	s.mu.Unlock()
	return s.tracker.Dependents(e.Name)
}

// Remove deletes name and returns its dependents. Removing an unknown name
// still reports dependents: pages may have asked for it before it existed.
func (s *Store) Remove(name string) []string {
	s.mu.Lock()
	delete(s.entries, name)
	s.mu.Unlock()
	return s.tracker.Dependents(name)
}

func (s *Store) Get(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

// Lookup returns the value of name, if present.
func (s *Store) Lookup(name string) (any, bool) {
	e, ok := s.Get(name)
	return e.Value, ok
}

// Values returns a snapshot map from name to value.
func (s *Store) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.Value
	}
	return out
}

// Names returns the stored names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := sets.New[string]()
	for name := range maps.Keys(s.entries) {
		names.Add(name)
	}
	return sets.Sorted(names)
}

// Replace swaps the whole content for entries.
func (s *Store) Replace(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		s.entries[e.Name] = e
	}
}
