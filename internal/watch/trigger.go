package watch

import (
	"context"
	"sync"
	"time"
)

// Trigger coalesces build requests. Requests within the debounce window fold
// into one; requests made while a build runs fold into exactly one follow-up.
type Trigger struct {
	debounce time.Duration
	build    func(context.Context)

	mu    sync.Mutex
	timer *time.Timer
	req   chan struct{}
}

func NewTrigger(debounce time.Duration, build func(context.Context)) *Trigger {
	return &Trigger{
		debounce: debounce,
		build:    build,
		req:      make(chan struct{}, 1),
	}
}

// Request asks for a build after the debounce window.
func (t *Trigger) Request() {
	if t.debounce <= 0 {
		t.signal()
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.signal)
}

func (t *Trigger) signal() {
	select {
	case t.req <- struct{}{}:
	default:
	}
}

// Run executes builds until ctx is done. Builds never overlap.
func (t *Trigger) Run(ctx context.Context) {
	defer t.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.req:
			if ctx.Err() != nil {
				return
			}
			t.build(ctx)
		}
	}
}

func (t *Trigger) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
