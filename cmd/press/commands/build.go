package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/press/internal/metrics"
	"git.home.luguber.info/inful/press/internal/press"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Dest string `short:"o" help:"Output directory relative to root, overrides dest"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if b.Dest != "" {
		cfg.Dest = b.Dest
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	p, err := press.Create(ctx, cfg, press.WithRecorder(metrics.NoopRecorder{}))
	if err != nil {
		return err
	}
	if err := p.Build(ctx); err != nil {
		return err
	}
	slog.Info("Site written", "dest", cfg.DestDir())
	return nil
}
