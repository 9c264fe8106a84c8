// Package pipeline runs the ordered extension steps that prepare a build pass.
package pipeline

import (
	"maps"
	"sync"
	"time"

	"git.home.luguber.info/inful/press/internal/config"
	"git.home.luguber.info/inful/press/internal/data"
	"git.home.luguber.info/inful/press/internal/page"
)

// PostRenderFunc rewrites the rendered output of one page.
type PostRenderFunc func(st *State, p *page.Page, out []byte) ([]byte, error)

// PostRender is a named output filter.
type PostRender struct {
	Name string
	Fn   PostRenderFunc
}

// RouteFunc maps a destination path to the path actually written.
type RouteFunc func(dest string) string

// Stats summarizes a build pass. Steps fill it in; templates read it as build.
type Stats struct {
	Pages       int
	Ignored     int
	Dirty       int
	Data        int
	Collections map[string]int
	// Fingerprint changes whenever any page content changes.
	Fingerprint string
	Rendered    int
}

// State is the context of one build pass. Steps mutate it; the renderer
// reads it afterwards.
type State struct {
	BuildID string
	Started time.Time
	Config  *config.Config

	Pages *page.Store
	Data  *data.Store

	Globals     map[string]any
	Collections map[string][]*page.Page
	// PageData holds per-page values injected into the render context, keyed
	// by source path.
	PageData map[string]map[string]any
	Helpers  map[string]any
	Filters  []PostRender
	Routes   []RouteFunc
	Stats    Stats
}

// NewState prepares a pass over the given stores. globals and extras are
// copied so steps may extend them for this pass only.
func NewState(id string, cfg *config.Config, pages *page.Store, store *data.Store, globals map[string]any, extras *Extras) *State {
	st := &State{
		BuildID:     id,
		Started:     time.Now(),
		Config:      cfg,
		Pages:       pages,
		Data:        store,
		Globals:     maps.Clone(globals),
		Collections: map[string][]*page.Page{},
		PageData:    map[string]map[string]any{},
		Helpers:     map[string]any{},
		Stats:       Stats{Collections: map[string]int{}},
	}
	if st.Globals == nil {
		st.Globals = map[string]any{}
	}
	if extras != nil {
		st.Helpers, st.Filters = extras.Snapshot()
	}
	return st
}

// Helper adds a template helper for this pass.
func (st *State) Helper(name string, fn any) { st.Helpers[name] = fn }

// PostRender appends an output filter for this pass.
func (st *State) PostRender(name string, fn PostRenderFunc) {
	st.Filters = append(st.Filters, PostRender{Name: name, Fn: fn})
}

// Route appends a destination rewrite for this pass.
func (st *State) Route(fn RouteFunc) { st.Routes = append(st.Routes, fn) }

// OutputFor applies every route to dest.
func (st *State) OutputFor(dest string) string {
	for _, r := range st.Routes {
		dest = r(dest)
	}
	return dest
}

// Inject sets a render context value for one page.
func (st *State) Inject(src, key string, value any) {
	m, ok := st.PageData[src]
	if !ok {
		m = map[string]any{}
		st.PageData[src] = m
	}
	m[key] = value
}

// Registry is what Registrar extensions receive when they are installed.
type Registry interface {
	Helper(name string, fn any)
	PostRender(name string, fn PostRenderFunc)
}

// Extras holds helpers and filters registered once and carried into every
// pass.
type Extras struct {
	mu      sync.RWMutex
	helpers map[string]any
	filters []PostRender
}

func NewExtras() *Extras {
	return &Extras{helpers: map[string]any{}}
}

func (e *Extras) Helper(name string, fn any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.helpers[name] = fn
}

func (e *Extras) PostRender(name string, fn PostRenderFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = append(e.filters, PostRender{Name: name, Fn: fn})
}

// Snapshot copies the registered helpers and filters.
func (e *Extras) Snapshot() (map[string]any, []PostRender) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.helpers), append([]PostRender(nil), e.filters...)
}
