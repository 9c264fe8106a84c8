package press

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/press/internal/classify"
	"git.home.luguber.info/inful/press/internal/data"
	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/page"
)

// Apply brings the stores and the template cache in line with one event and
// reports whether the output needs a rebuild. It does not build.
func (p *Press) Apply(ctx context.Context, ev classify.Event) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		rebuild bool
		err     error
	)
	switch ev.Namespace {
	case classify.NamespacePage:
		rebuild, err = p.applyPage(ev)
	case classify.NamespaceData:
		rebuild = p.applyData(ctx, ev)
	default:
		slog.Debug("Ignoring unclassified event", logfields.Path(ev.Path))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.recorder.IncEventApplied(ev.String())
	slog.Debug("Event applied", logfields.Event(ev.String()), logfields.Path(ev.Path), slog.Bool("rebuild", rebuild))
	return rebuild, nil
}

// HandleEvent applies ev and builds when it changed anything.
func (p *Press) HandleEvent(ctx context.Context, ev classify.Event) error {
	rebuild, err := p.Apply(ctx, ev)
	if err != nil || !rebuild {
		return err
	}
	return p.Build(ctx)
}

func (p *Press) applyPage(ev classify.Event) (bool, error) {
	// Old and new names both go stale, excluded or not: partials and layouts
	// live in the cache too.
	p.renderer.Invalidate(ev.TemplateNames()...)

	switch ev.Op {
	case classify.OpDeleted:
		p.removePage(ev.Path)
		return true, nil
	case classify.OpRenamed:
		p.removePage(ev.OldPath)
		if page.Excluded(ev.Path) {
			return true, nil
		}
		return true, p.loadPage(ev.Path, nil)
	default:
		if page.Excluded(ev.Path) {
			return true, nil
		}
		prev, _ := p.pages.Get(ev.Path)
		return true, p.loadPage(ev.Path, prev)
	}
}

// loadPage reads rel into the store. A page replacing prev keeps its last
// output location and data dependencies, so a later move or data change
// still finds them.
func (p *Press) loadPage(rel string, prev *page.Page) error {
	pg, err := page.Load(p.loadOptions(), rel)
	if err != nil {
		return err
	}
	if prev != nil {
		pg.OutputPath = prev.OutputPath
		if prev.DataDependencies != nil {
			pg.DataDependencies = prev.DataDependencies.Clone()
		}
	}
	if err := p.pages.Add(pg); err != nil {
		return err
	}
	slog.Debug("Page loaded", logfields.Page(rel))
	return nil
}

// removePage drops the page and everything built from it.
func (p *Press) removePage(rel string) {
	if rel == "" {
		return
	}
	p.data.Tracker().Forget(rel)
	pg, ok := p.pages.Remove(rel)
	if !ok {
		return
	}
	p.renderer.RemoveOutput(pg)
	slog.Debug("Page removed", logfields.Page(rel))
}

func (p *Press) applyData(ctx context.Context, ev classify.Event) bool {
	switch ev.Op {
	case classify.OpDeleted:
		p.removeData(ev.DataName(), ev.Path)
	case classify.OpRenamed:
		p.removeData(ev.OldDataName(), ev.OldPath)
		p.loadData(ctx, ev.Path)
	default:
		p.loadData(ctx, ev.Path)
	}
	return true
}

func (p *Press) loadData(ctx context.Context, rel string) {
	e := data.Load(ctx, p.registry, p.cfg.Root, rel)
	p.markDirty(e.Name, p.data.Set(e))
}

// removeData drops the entry rel provided under name. Another source may
// have taken the name since; its entry stays.
func (p *Press) removeData(name, rel string) {
	if cur, ok := p.data.Get(name); ok && cur.Source != "" && cur.Source != rel {
		slog.Debug("Data name now provided by another source", logfields.Data(name), logfields.Path(cur.Source))
		return
	}
	p.markDirty(name, p.data.Remove(name))
}

func (p *Press) markDirty(name string, dependents []string) {
	for _, src := range dependents {
		if pg, ok := p.pages.Get(src); ok {
			pg.MarkDirty()
		}
	}
	if len(dependents) > 0 {
		slog.Debug("Data dependents marked dirty", logfields.Data(name), logfields.Count(len(dependents)))
	}
}
