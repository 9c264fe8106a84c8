package press

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/press/internal/classify"
	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/watch"
)

// session is one running watch: a watcher feeding events to the stores and a
// trigger running the builds they request.
type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartWatcher watches the page and data roots until ctx is done or
// StopWatcher is called. Changes are applied in arrival order; the builds
// they need are debounced and never overlap.
func (p *Press) StartWatcher(ctx context.Context) error {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.session != nil {
		return ferrors.WatchError("watcher already running").Build()
	}

	w, err := watch.New(watch.Options{
		Dirs:         []string{p.cfg.SrcDir(), p.cfg.DataDir()},
		RenameWindow: p.cfg.Watch.RenamePairWindow,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	trigger := watch.NewTrigger(p.cfg.Watch.Debounce, func(ctx context.Context) {
		if err := p.Build(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Rebuild failed", logfields.Error(err))
		}
	})
	s := &session{cancel: cancel, done: make(chan struct{})}
	p.session = s

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			slog.Error("Watcher stopped", logfields.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		trigger.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		// The event stream ending for any reason ends the session.
		defer cancel()
		p.consume(ctx, w.Events(), trigger)
	}()
	go func() {
		wg.Wait()
		p.watchMu.Lock()
		if p.session == s {
			p.session = nil
		}
		p.watchMu.Unlock()
		close(s.done)
	}()

	slog.Info("Watching for changes",
		logfields.Path(p.cfg.SrcDir()),
		slog.String("data", p.cfg.DataDir()))
	return nil
}

func (p *Press) consume(ctx context.Context, events <-chan classify.RawEvent, trigger *watch.Trigger) {
	for raw := range events {
		for _, ev := range p.classify.Classify(raw) {
			rebuild, err := p.Apply(ctx, ev)
			if err != nil {
				slog.Warn("Failed to apply change",
					logfields.Event(ev.String()),
					logfields.Path(ev.Path),
					logfields.Error(err))
				continue
			}
			if rebuild {
				trigger.Request()
			}
		}
	}
}

// StopWatcher ends the watch session and waits for an in-flight build to
// observe the cancellation. It is a no-op without a session.
func (p *Press) StopWatcher() {
	p.watchMu.Lock()
	s := p.session
	p.session = nil
	p.watchMu.Unlock()
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Watcher stopped")
}

// Watching returns a channel closed when the current session ends, or nil
// when none runs.
func (p *Press) Watching() <-chan struct{} {
	p.watchMu.Lock()
	defer p.watchMu.Unlock()
	if p.session == nil {
		return nil
	}
	return p.session.done
}
