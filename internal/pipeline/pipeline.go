package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/press/internal/foundation/errors"
	"git.home.luguber.info/inful/press/internal/logfields"
	"git.home.luguber.info/inful/press/internal/metrics"
)

// Extension is anything installed with Use. It is useful when it is also a
// Runner, a Registrar, or both.
type Extension interface {
	Name() string
}

// Runner is a pipeline step.
type Runner interface {
	Extension
	Run(ctx context.Context, st *State) error
}

// Registrar is invoked once when the extension is installed.
type Registrar interface {
	Extension
	Register(r Registry)
}

type stepFunc struct {
	name string
	fn   func(ctx context.Context, st *State) error
}

func (s stepFunc) Name() string                              { return s.name }
func (s stepFunc) Run(ctx context.Context, st *State) error { return s.fn(ctx, st) }

// Func wraps a function as a named step.
func Func(name string, fn func(ctx context.Context, st *State) error) Runner {
	return stepFunc{name: name, fn: fn}
}

// Pipeline is an ordered queue of steps followed by a tail of late steps.
type Pipeline struct {
	mu       sync.Mutex
	steps    []Runner
	late     []Runner
	recorder metrics.Recorder
}

func New(recorder metrics.Recorder) *Pipeline {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Pipeline{recorder: recorder}
}

// Append queues r after every step appended before it and ahead of the
// late steps.
func (p *Pipeline) Append(r Runner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, r)
}

// AppendLate queues r at the end of the tail, after every regular step no
// matter when that step is appended.
func (p *Pipeline) AppendLate(r Runner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.late = append(p.late, r)
}

// Names lists the queued steps in run order.
func (p *Pipeline) Names() []string {
	steps := p.snapshot()
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name()
	}
	return out
}

func (p *Pipeline) snapshot() []Runner {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Runner, 0, len(p.steps)+len(p.late))
	out = append(out, p.steps...)
	return append(out, p.late...)
}

// Run drains a copy of the queue strictly in order: a step starts only after
// the previous one returned. The first failure stops the pass. Cancellation
// is checked between steps.
func (p *Pipeline) Run(ctx context.Context, st *State) error {
	steps := p.snapshot()
	for i, step := range steps {
		name := step.Name()
		if err := ctx.Err(); err != nil {
			p.recorder.IncStepResult(name, metrics.ResultCanceled)
			return ferrors.WrapError(err, ferrors.CategoryPipeline, "build canceled before step").
				WithContext("step", name).
				WithContext("position", i).
				Build()
		}

		t0 := time.Now()
		err := step.Run(ctx, st)
		dur := time.Since(t0)
		p.recorder.ObserveStepDuration(name, dur)

		if err != nil {
			p.recorder.IncStepResult(name, metrics.ResultFailed)
			slog.Error("Pipeline step failed",
				logfields.BuildID(st.BuildID),
				logfields.Step(name),
				logfields.Duration(dur),
				logfields.Error(err))
			return ferrors.WrapError(err, ferrors.CategoryPipeline, "pipeline step failed").
				WithContext("step", name).
				WithContext("position", i).
				Build()
		}
		p.recorder.IncStepResult(name, metrics.ResultSuccess)
		slog.Debug("Pipeline step completed",
			logfields.BuildID(st.BuildID),
			logfields.Step(name),
			logfields.Duration(dur))
	}
	return nil
}
