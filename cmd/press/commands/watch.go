package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/press/internal/config"
	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/metrics"
	"git.home.luguber.info/inful/press/internal/press"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	NoInitialBuild bool `name:"no-initial-build" help:"Skip the build before watching"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return RunWatch(ctx, cfg, !w.NoInitialBuild)
}

// RunWatch builds and watches until ctx is done or the watcher gives up.
func RunWatch(ctx context.Context, cfg *config.Config, initialBuild bool) error {
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		stop, err := serveMetrics(cfg.Metrics.Listen, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	p, err := press.Create(ctx, cfg, press.WithRecorder(recorder))
	if err != nil {
		return err
	}
	if initialBuild {
		// A broken page should not keep the watcher from starting: fixing
		// it is what triggers the next build.
		if err := p.Build(ctx); err != nil {
			slog.Error("Initial build failed", logfields.Error(err))
		}
	}

	if err := p.StartWatcher(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping watcher")
	case <-p.Watching():
		slog.Warn("Watcher ended")
	}
	p.StopWatcher()
	return nil
}

func serveMetrics(addr string, reg *prom.Registry) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "start metrics server").WithContext("listen", addr).Build()
		}
	case <-time.After(50 * time.Millisecond):
	}
	slog.Info("Serving metrics", logfields.Path(addr+"/metrics"))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
