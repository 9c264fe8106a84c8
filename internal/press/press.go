// Package press is the build orchestrator: it owns the page and data stores,
// the extension pipeline and the renderer, and keeps the output tree in step
// with the sources.
package press

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"git.home.luguber.info/inful/press/internal/classify"
	"git.home.luguber.info/inful/press/internal/config"
	"git.home.luguber.info/inful/press/internal/data"
	"git.home.luguber.info/inful/press/internal/extensions"
	"git.home.luguber.info/inful/press/internal/markdown"
	"git.home.luguber.info/inful/press/internal/metrics"
	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
	"git.home.luguber.info/inful/press/internal/render"
)

// Press builds one project.
type Press struct {
	cfg      *config.Config
	recorder metrics.Recorder
	registry *data.Registry

	// mu serializes builds and store mutations from events.
	mu       sync.Mutex
	pages    *page.Store
	data     *data.Store
	renderer *render.Renderer
	classify *classify.Classifier
	pipeline *pipeline.Pipeline
	extras   *pipeline.Extras

	globalsMu sync.RWMutex
	globals   map[string]any

	readyOnce sync.Once

	watchMu sync.Mutex
	session *session
}

// Option customizes a Press.
type Option func(*Press)

// WithRecorder reports builds, steps and events to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Press) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithRegistry replaces the default data provider registry.
func WithRegistry(reg *data.Registry) Option {
	return func(p *Press) {
		if reg != nil {
			p.registry = reg
		}
	}
}

// New wires a Press for cfg. Nothing is read from disk until Load.
func New(cfg *config.Config, opts ...Option) (*Press, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	p := &Press{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		globals:  map[string]any{},
		extras:   pipeline.NewExtras(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = data.DefaultRegistry(data.ScriptOptions{Node: cfg.Script.Node, Timeout: cfg.Script.Timeout})
	}

	c, err := classify.New(classify.Options{
		Root:    cfg.Root,
		Src:     cfg.Src,
		Data:    cfg.Data,
		DataExt: p.registry.Extensions(),
	})
	if err != nil {
		return nil, err
	}
	p.classify = c

	p.pages = page.NewStore()
	p.data = data.NewStore(data.NewTracker())
	p.renderer = render.New(render.Options{
		SrcDir:         cfg.SrcDir(),
		DestDir:        cfg.DestDir(),
		Autoescape:     cfg.Templates.Autoescape,
		Debug:          cfg.Templates.Debug,
		MetadataBuffer: cfg.MetadataBuffer,
		Markdown: markdown.Options{
			GFM:           cfg.Markdown.GFM,
			Unsafe:        cfg.Markdown.Unsafe,
			HardWraps:     cfg.Markdown.HardWraps,
			AutoHeadingID: cfg.Markdown.AutoHeadingID,
		},
	})
	p.pipeline = pipeline.New(p.recorder)

	p.Use(extensions.NewMarkdownHelpers(p.renderer.Converter()))
	p.Use(extensions.CodeHighlighting{})
	return p, nil
}

// Create is New, Load and Ready in one call.
func Create(ctx context.Context, cfg *config.Config, opts ...Option) (*Press, error) {
	p, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	p.Ready()
	return p, nil
}

// Ready queues the built-ins that must see every user step's effect. It is
// idempotent. Steps registered later still run ahead of them.
func (p *Press) Ready() {
	p.readyOnce.Do(func() {
		p.pipeline.AppendLate(extensions.PrettyURLs())
		p.pipeline.AppendLate(extensions.DataInjection())
		p.pipeline.AppendLate(extensions.Stats())
		p.pipeline.AppendLate(extensions.RelativeURLs())
	})
}

// Config returns the configuration the Press was built with.
func (p *Press) Config() *config.Config { return p.cfg }

// Pages exposes the page store.
func (p *Press) Pages() *page.Store { return p.pages }

// Data exposes the data store.
func (p *Press) Data() *data.Store { return p.data }

// Steps lists the queued pipeline steps in run order.
func (p *Press) Steps() []string { return p.pipeline.Names() }

// Metadata merges values into the metadata of pages matching pattern.
func (p *Press) Metadata(pattern string, values map[string]any) error {
	step, err := extensions.Metadata(pattern, values)
	if err != nil {
		return err
	}
	p.pipeline.Append(step)
	return nil
}

// Ignore keeps pages matching pattern out of the output.
func (p *Press) Ignore(pattern string) error {
	step, err := extensions.Ignore(pattern)
	if err != nil {
		return err
	}
	p.pipeline.Append(step)
	return nil
}

// Layout wraps pages matching pattern in layout.
func (p *Press) Layout(pattern, layout string) error {
	step, err := extensions.Layout(pattern, layout)
	if err != nil {
		return err
	}
	p.pipeline.Append(step)
	return nil
}

// Collection groups pages matching pattern under name.
func (p *Press) Collection(name, pattern string) error {
	step, err := extensions.Collection(name, pattern)
	if err != nil {
		return err
	}
	p.pipeline.Append(step)
	return nil
}

// Global sets a value every template sees, directly and under globals.
func (p *Press) Global(key string, value any) {
	p.globalsMu.Lock()
	defer p.globalsMu.Unlock()
	p.globals[key] = value
}

// Use installs an extension. Registrars register their helpers and filters
// now; runners are queued as a pipeline step.
func (p *Press) Use(ext pipeline.Extension) {
	if r, ok := ext.(pipeline.Registrar); ok {
		r.Register(p.extras)
	}
	if r, ok := ext.(pipeline.Runner); ok {
		p.pipeline.Append(r)
	}
}

func (p *Press) globalsSnapshot() map[string]any {
	p.globalsMu.RLock()
	defer p.globalsMu.RUnlock()
	return maps.Clone(p.globals)
}

func (p *Press) loadOptions() page.LoadOptions {
	return page.LoadOptions{Root: p.cfg.Root, Src: p.cfg.Src, MetadataBuffer: p.cfg.MetadataBuffer}
}
