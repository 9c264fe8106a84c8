package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/press/internal/classify"
)

type pendingRename struct {
	path string
	at   time.Time
	dir  bool
	// children are the files known under a renamed directory, relative to it.
	children []string
}

// deletes reports r as gone: the path itself, or every file under it.
func (r pendingRename) deletes() []classify.RawEvent {
	if !r.dir {
		return []classify.RawEvent{{Op: classify.OpDeleted, Path: r.path}}
	}
	out := make([]classify.RawEvent, 0, len(r.children))
	for _, c := range r.children {
		out = append(out, classify.RawEvent{Op: classify.OpDeleted, Path: filepath.Join(r.path, c)})
	}
	return out
}

// Pairer folds fsnotify's two-part renames (Rename on the old path, Create on
// the new one) into a single renamed event. A Rename that sees no Create
// within the window is reported as a delete. Directories pair only with
// directories and expand into events for the files they hold.
type Pairer struct {
	window  time.Duration
	pending []pendingRename
}

func NewPairer(window time.Duration) *Pairer {
	return &Pairer{window: window}
}

// Push converts a file event, returning the raw events that are now complete.
func (p *Pairer) Push(ev fsnotify.Event, now time.Time) []classify.RawEvent {
	out := p.Expire(now)

	switch {
	case ev.Has(fsnotify.Rename):
		out = append(out, p.hold(pendingRename{path: ev.Name, at: now})...)
	case ev.Has(fsnotify.Create):
		if r, ok := p.take(ev.Name, false); ok {
			return append(out, classify.RawEvent{Op: classify.OpRenamed, Path: ev.Name, OldPath: r.path})
		}
		out = append(out, classify.RawEvent{Op: classify.OpAdded, Path: ev.Name})
	case ev.Has(fsnotify.Remove):
		out = append(out, classify.RawEvent{Op: classify.OpDeleted, Path: ev.Name})
	case ev.Has(fsnotify.Write):
		out = append(out, classify.RawEvent{Op: classify.OpChanged, Path: ev.Name})
	}
	return out
}

// PushDirRename records that dir moved away holding children, the files
// known under it relative to dir.
func (p *Pairer) PushDirRename(dir string, children []string, now time.Time) []classify.RawEvent {
	out := p.Expire(now)
	return append(out, p.hold(pendingRename{path: dir, at: now, dir: true, children: children})...)
}

// PushDirCreate reports a directory that appeared holding children. Paired
// with a pending directory rename, files present on both sides are renames,
// files only on the new side are adds and the rest are deletes.
func (p *Pairer) PushDirCreate(dir string, children []string, now time.Time) []classify.RawEvent {
	out := p.Expire(now)
	r, paired := p.take(dir, true)
	old := make(map[string]struct{}, len(r.children))
	for _, c := range r.children {
		old[c] = struct{}{}
	}
	for _, c := range children {
		ev := classify.RawEvent{Op: classify.OpAdded, Path: filepath.Join(dir, c)}
		if _, ok := old[c]; paired && ok {
			ev.Op, ev.OldPath = classify.OpRenamed, filepath.Join(r.path, c)
			delete(old, c)
		}
		out = append(out, ev)
	}
	for _, c := range r.children {
		if _, ok := old[c]; ok {
			out = append(out, classify.RawEvent{Op: classify.OpDeleted, Path: filepath.Join(r.path, c)})
		}
	}
	return out
}

// hold queues r for pairing, or reports it as deleted when pairing is off.
func (p *Pairer) hold(r pendingRename) []classify.RawEvent {
	if p.window <= 0 {
		return r.deletes()
	}
	p.pending = append(p.pending, r)
	return nil
}

// Expire reports pending renames older than the window as deletes.
func (p *Pairer) Expire(now time.Time) []classify.RawEvent {
	var out []classify.RawEvent
	kept := p.pending[:0]
	for _, r := range p.pending {
		if now.Sub(r.at) >= p.window {
			out = append(out, r.deletes()...)
			continue
		}
		kept = append(kept, r)
	}
	p.pending = kept
	return out
}

// Deadline returns when the oldest pending rename expires.
func (p *Pairer) Deadline() (time.Time, bool) {
	if len(p.pending) == 0 {
		return time.Time{}, false
	}
	return p.pending[0].at.Add(p.window), true
}

// take removes the pending rename of the same kind that best matches
// newPath: same directory first, then same base name, then any. Within a
// tier the most recent wins, since a move reports its halves back to back.
func (p *Pairer) take(newPath string, dir bool) (pendingRename, bool) {
	idx := -1
	parent, base := filepath.Dir(newPath), filepath.Base(newPath)
	for _, match := range []func(pendingRename) bool{
		func(r pendingRename) bool { return filepath.Dir(r.path) == parent },
		func(r pendingRename) bool { return filepath.Base(r.path) == base },
		func(pendingRename) bool { return true },
	} {
		for i := len(p.pending) - 1; i >= 0; i-- {
			if r := p.pending[i]; r.dir == dir && match(r) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return pendingRename{}, false
	}
	r := p.pending[idx]
	p.pending = append(p.pending[:idx], p.pending[idx+1:]...)
	return r, true
}
