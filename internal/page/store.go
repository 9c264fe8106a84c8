package page

import (
	"errors"
	"sort"
	"sync"
)

// ErrExcluded is returned when a page carrying the exclusion marker is added.
var ErrExcluded = errors.New("page name carries the exclusion marker")

// Store indexes pages by source path and remembers insertion order.
type Store struct {
	mu    sync.RWMutex
	pages map[string]*Page
	next  uint64
}

func NewStore() *Store {
	return &Store{pages: make(map[string]*Page)}
}

// Add inserts p, replacing any page with the same source path. The
// replacement moves to the end of the iteration order.
func (s *Store) Add(p *Page) error {
	if Excluded(p.SourcePath) {
		return ErrExcluded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	p.seq = s.next
	s.pages[p.SourcePath] = p
	return nil
}

// Remove deletes the page at sourcePath and returns it.
func (s *Store) Remove(sourcePath string) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[sourcePath]
	if ok {
		delete(s.pages, sourcePath)
	}
	return p, ok
}

func (s *Store) Get(sourcePath string) (*Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[sourcePath]
	return p, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// All returns the pages in insertion order.
func (s *Store) All() []*Page {
	s.mu.RLock()
	out := make([]*Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Replace replaces the whole content with pages, in the given order.
// Excluded pages are dropped.
func (s *Store) Replace(pages []*Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = make(map[string]*Page, len(pages))
	for _, p := range pages {
		if p == nil || Excluded(p.SourcePath) {
			continue
		}
		s.next++
		p.seq = s.next
		s.pages[p.SourcePath] = p
	}
}
