package extensions

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/pipeline"
)

// DataInjection exposes each data source a page declares under its data key
// as a top-level template value named after the source.
func DataInjection() pipeline.Runner {
	return pipeline.Func("data-injection", func(_ context.Context, st *pipeline.State) error {
		if st.Data == nil {
			return nil
		}
		for _, p := range st.Pages.All() {
			for _, name := range p.DeclaredData() {
				v, ok := st.Data.Lookup(name)
				if !ok {
					slog.Debug("Declared data source is missing",
						logfields.BuildID(st.BuildID),
						logfields.Page(p.SourcePath),
						logfields.Data(name))
					v = map[string]any{}
				}
				st.Inject(p.SourcePath, name, v)
			}
		}
		return nil
	})
}
