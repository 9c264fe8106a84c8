// Package watch reports filesystem changes under the watched trees as raw
// events and coalesces the builds they cause.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/press/internal/classify"
	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/logfields"
)

// Options configures a Watcher.
type Options struct {
	// Dirs are watched recursively. Missing dirs are skipped.
	Dirs []string
	// RenameWindow bounds how long a Rename waits for its Create.
	RenameWindow time.Duration
}

// Watcher turns fsnotify notifications into classify.RawEvents. It keeps the
// set of directories and files under the watched trees so a directory that
// moves or disappears can be reported file by file.
type Watcher struct {
	fs     *fsnotify.Watcher
	pairer *Pairer
	events chan classify.RawEvent

	dirs  map[string]struct{}
	files map[string]struct{}
}

func New(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WatchError("create filesystem watcher").WithCause(err).Build()
	}
	w := &Watcher{
		fs:     fw,
		pairer: NewPairer(opts.RenameWindow),
		events: make(chan classify.RawEvent, 64),
		dirs:   make(map[string]struct{}),
		files:  make(map[string]struct{}),
	}
	for _, dir := range opts.Dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Debug("Watch dir does not exist", logfields.Path(dir))
			continue
		}
		children, err := w.addTree(dir)
		if err != nil {
			_ = fw.Close()
			return nil, ferrors.WatchError("watch directory").WithCause(err).WithContext("path", dir).Build()
		}
		for _, rel := range children {
			w.files[filepath.Join(dir, rel)] = struct{}{}
		}
	}
	return w, nil
}

// Events delivers raw events until Run returns.
func (w *Watcher) Events() <-chan classify.RawEvent { return w.events }

// Run pumps notifications until ctx is done or the notification channels
// close. The events channel is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer func() { _ = w.fs.Close() }()

	var flush *time.Timer
	var flushC <-chan time.Time
	rearm := func() {
		if flush != nil {
			flush.Stop()
			flushC = nil
		}
		if deadline, ok := w.pairer.Deadline(); ok {
			flush = time.NewTimer(time.Until(deadline))
			flushC = flush.C
		}
	}
	defer func() {
		if flush != nil {
			flush.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(ev.Name) {
				continue
			}
			slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			if !w.emit(ctx, w.handle(ev, time.Now())) {
				return nil
			}
			rearm()
		case <-flushC:
			flushC = nil
			if !w.emit(ctx, w.track(w.pairer.Expire(time.Now()))) {
				return nil
			}
			rearm()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// handle turns one notification into raw events, expanding directories into
// the files they hold.
func (w *Watcher) handle(ev fsnotify.Event, now time.Time) []classify.RawEvent {
	switch {
	case ev.Has(fsnotify.Create):
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			children, err := w.addTree(ev.Name)
			if err != nil {
				slog.Warn("Watch add failed", logfields.Path(ev.Name), logfields.Error(err))
			}
			return w.track(w.pairer.PushDirCreate(ev.Name, children, now))
		}
	case ev.Has(fsnotify.Rename), ev.Has(fsnotify.Remove):
		if _, ok := w.dirs[ev.Name]; ok {
			children := w.forgetTree(ev.Name)
			if ev.Has(fsnotify.Rename) {
				return w.track(w.pairer.PushDirRename(ev.Name, children, now))
			}
			return w.track((pendingRename{path: ev.Name, dir: true, children: children}).deletes())
		}
		// A path never seen as a file is a directory already accounted for,
		// such as the second notification for a directory moved away.
		if _, ok := w.files[ev.Name]; !ok {
			return nil
		}
	}
	return w.track(w.pairer.Push(ev, now))
}

// track keeps the known file set in line with events about to be emitted.
func (w *Watcher) track(evs []classify.RawEvent) []classify.RawEvent {
	for _, ev := range evs {
		switch ev.Op {
		case classify.OpDeleted:
			delete(w.files, ev.Path)
		case classify.OpRenamed:
			delete(w.files, ev.OldPath)
			w.files[ev.Path] = struct{}{}
		default:
			w.files[ev.Path] = struct{}{}
		}
	}
	return evs
}

// addTree watches root and every directory below it, returning the files it
// already holds relative to root.
func (w *Watcher) addTree(root string) ([]string, error) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			return nil
		}
		w.dirs[path] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.childrenOf(root), nil
}

// childrenOf lists the files on disk under root that events would report.
func (w *Watcher) childrenOf(root string) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldIgnoreEvent(path) {
			return nil
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

// forgetTree stops watching dir and everything under it, returning the files
// it was known to hold relative to dir.
func (w *Watcher) forgetTree(dir string) []string {
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
			// The directory may still exist elsewhere; its watch would report
			// under the old name.
			_ = w.fs.Remove(d)
		}
	}
	var children []string
	for f := range w.files {
		if strings.HasPrefix(f, prefix) {
			delete(w.files, f)
			children = append(children, strings.TrimPrefix(f, prefix))
		}
	}
	slices.Sort(children)
	return children
}

func (w *Watcher) emit(ctx context.Context, evs []classify.RawEvent) bool {
	for _, ev := range evs {
		select {
		case w.events <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// shouldIgnoreEvent filters hidden files and editor leftovers.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "4913"
}
