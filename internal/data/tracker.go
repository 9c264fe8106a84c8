package data

import (
	"sync"

	"git.home.luguber.info/inful/press/internal/util/sets"
)

// Tracker is the reverse index from data names to the pages that read them.
// It reflects the dependencies captured at each page's last render.
type Tracker struct {
	mu     sync.RWMutex
	byName map[string]sets.Set[string]
	byPage map[string]sets.Set[string]
}

func NewTracker() *Tracker {
	return &Tracker{
		byName: make(map[string]sets.Set[string]),
		byPage: make(map[string]sets.Set[string]),
	}
}

// Record replaces the dependency set of page.
func (t *Tracker) Record(page string, names sets.Set[string]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forget(page)
	if len(names) == 0 {
		return
	}
	t.byPage[page] = names.Clone()
	for name := range names {
		deps, ok := t.byName[name]
		if !ok {
			deps = sets.New[string]()
			t.byName[name] = deps
		}
		deps.Add(page)
	}
}

// Forget drops every dependency of page.
func (t *Tracker) Forget(page string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forget(page)
}

func (t *Tracker) forget(page string) {
	for name := range t.byPage[page] {
		if deps, ok := t.byName[name]; ok {
			deps.Delete(page)
			if len(deps) == 0 {
				delete(t.byName, name)
			}
		}
	}
	delete(t.byPage, page)
}

// Dependents returns the pages that read name, sorted.
func (t *Tracker) Dependents(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sets.Sorted(t.byName[name])
}

// Reset drops the whole index.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byName = make(map[string]sets.Set[string])
	t.byPage = make(map[string]sets.Set[string])
}
