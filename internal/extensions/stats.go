package extensions

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/markdown"
	"git.home.luguber.info/inful/press/internal/page"
	"git.home.luguber.info/inful/press/internal/pipeline"
)

// Stats fills the pass summary templates read as build, and warns about
// relative markdown links to pages that do not exist.
func Stats() pipeline.Runner {
	return pipeline.Func("stats", func(_ context.Context, st *pipeline.State) error {
		pages := st.Pages.All()
		s := pipeline.Stats{Collections: make(map[string]int, len(st.Collections))}
		fingerprints := make([]string, 0, len(pages))

		for _, p := range pages {
			s.Pages++
			if p.Ignored() {
				s.Ignored++
			}
			if p.Dirty {
				s.Dirty++
			}
			fingerprints = append(fingerprints, p.SourcePath+"="+p.Fingerprint)
			if p.Markdown {
				checkLinks(st, p)
			}
		}
		for name, members := range st.Collections {
			s.Collections[name] = len(members)
		}
		if st.Data != nil {
			s.Data = len(st.Data.Names())
		}
		s.Fingerprint = mdfp.CalculateFingerprintFromParts("", strings.Join(fingerprints, "\n"))
		st.Stats = s

		slog.Debug("Build stats",
			logfields.BuildID(st.BuildID),
			logfields.Count(s.Pages),
			slog.Int("dirty", s.Dirty),
			slog.Int("ignored", s.Ignored))
		return nil
	})
}

func checkLinks(st *pipeline.State, p *page.Page) {
	for _, l := range markdown.ExtractLinks(p.Body) {
		if l.Kind != markdown.LinkKindInline {
			continue
		}
		target, _ := splitURL(l.Destination)
		if target == "" || strings.Contains(target, "://") || strings.HasPrefix(target, "/") || !page.IsMarkdown(target) {
			continue
		}
		resolved := path.Clean(path.Join(path.Dir(p.SourcePath), target))
		if _, ok := st.Pages.Get(resolved); !ok {
			slog.Warn("Link to missing page",
				logfields.BuildID(st.BuildID),
				logfields.Page(p.SourcePath),
				logfields.Path(l.Destination))
		}
	}
}
