package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by the loader, pipeline and watcher.
const (
	KeyBuildID    = "build_id"
	KeyPage       = "page"
	KeyData       = "data"
	KeyEvent      = "event"
	KeyStep       = "step"
	KeyPath       = "path"
	KeyTemplate   = "template"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyReason     = "reason"
	KeyError      = "error"
)

func BuildID(id string) slog.Attr    { return slog.String(KeyBuildID, id) }
func Page(src string) slog.Attr      { return slog.String(KeyPage, src) }
func Data(name string) slog.Attr     { return slog.String(KeyData, name) }
func Event(kind string) slog.Attr    { return slog.String(KeyEvent, kind) }
func Step(name string) slog.Attr     { return slog.String(KeyStep, name) }
func Path(p string) slog.Attr        { return slog.String(KeyPath, p) }
func Template(name string) slog.Attr { return slog.String(KeyTemplate, name) }
func Count(n int) slog.Attr          { return slog.Int(KeyCount, n) }
func Reason(r string) slog.Attr      { return slog.String(KeyReason, r) }

// Duration reports d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
