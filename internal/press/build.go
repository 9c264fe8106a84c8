package press

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/data"
	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/metrics"
	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
	"git.home.luguber.info/inful/press/internal/render"
)

// Load reads every page and data source and replaces the store contents.
// A page that cannot be read or parsed fails the whole load; data sources
// that cannot be resolved load as empty maps.
func (p *Press) Load(ctx context.Context) error {
	start := time.Now()

	pages, err := page.LoadAll(ctx, p.loadOptions())
	if err != nil {
		return err
	}
	entries, err := data.LoadAll(ctx, p.registry, p.cfg.Root, p.cfg.Data)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "load data sources").
			WithContext("path", p.cfg.Data).
			Build()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages.Replace(pages)
	p.data.Replace(entries)
	p.data.Tracker().Reset()
	p.renderer.Invalidate(page.ExclusionMarker)

	slog.Info("Sources loaded",
		slog.Int("pages", len(pages)),
		slog.Int("data", len(entries)),
		logfields.Duration(time.Since(start)))
	return nil
}

// Build runs the pipeline and renders every non-ignored page. Passes never
// overlap.
func (p *Press) Build(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.build(ctx)
}

func (p *Press) build(ctx context.Context) error {
	id := uuid.NewString()
	start := time.Now()
	st := pipeline.NewState(id, p.cfg, p.pages, p.data, p.globalsSnapshot(), p.extras)

	dirty := 0
	for _, pg := range p.pages.All() {
		if pg.Dirty {
			dirty++
		}
	}
	p.recorder.SetDirtyPages(dirty)
	slog.Info("Build started", logfields.BuildID(id), logfields.Count(p.pages.Len()), slog.Int("dirty", dirty))

	err := p.pipeline.Run(ctx, st)
	if err == nil {
		var sum render.Summary
		sum, err = p.renderer.RenderAll(ctx, st)
		p.recorder.AddPagesRendered(sum.Rendered)
		if err == nil {
			dur := time.Since(start)
			p.recorder.ObserveBuildDuration(dur)
			p.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
			slog.Info("Build completed",
				logfields.BuildID(id),
				slog.Int("rendered", sum.Rendered),
				slog.Int("ignored", sum.Ignored),
				logfields.Duration(dur))
			return nil
		}
	}

	dur := time.Since(start)
	p.recorder.ObserveBuildDuration(dur)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.recorder.IncBuildOutcome(metrics.BuildOutcomeCanceled)
		slog.Warn("Build canceled", logfields.BuildID(id), logfields.Duration(dur))
		return err
	}
	p.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
	slog.Error("Build failed", logfields.BuildID(id), logfields.Duration(dur), logfields.Error(err))
	return err
}
