// Package publish runs the sync, build and deploy steps that turn drafts
// marked for publication into a deployed site.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds each step when no timeout is configured.
const DefaultTimeout = 10 * time.Minute

// StepResult is the outcome of one step.
type StepResult struct {
	Name     string        `json:"name"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// OK reports whether the step succeeded.
func (r StepResult) OK() bool { return r.Err == nil }

// Log records every step a run attempted, in order.
type Log struct {
	Steps    []StepResult `json:"steps"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}

// Failed returns the first failed step, if any.
func (l Log) Failed() (StepResult, bool) {
	for _, s := range l.Steps {
		if s.Err != nil {
			return s, true
		}
	}
	return StepResult{}, false
}

// Runner runs the publication pipeline.
type Runner interface {
	Run(ctx context.Context) (Log, error)
}

// Step is one stage of a pipeline. The returned string is its human-readable
// output.
type Step interface {
	Name() string
	Run(ctx context.Context) (string, error)
}

// Func adapts a function to Step.
type Func struct {
	StepName string
	Fn       func(ctx context.Context) (string, error)
}

func (f Func) Name() string                            { return f.StepName }
func (f Func) Run(ctx context.Context) (string, error) { return f.Fn(ctx) }

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	steps    []Step
	timeout  time.Duration
	logger   *slog.Logger
	progress func(StepResult)
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout sets the per-step deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithProgress registers a callback invoked after every step.
func WithProgress(fn func(StepResult)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// NewPipeline creates a pipeline over steps.
func NewPipeline(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:   steps,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Steps returns the step names in order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes the steps. A step that outlives its deadline fails with an
// error wrapping context.DeadlineExceeded.
func (p *Pipeline) Run(ctx context.Context) (Log, error) {
	return p.run(ctx, p.progress)
}

// RunWithProgress is Run with a per-call progress callback.
func (p *Pipeline) RunWithProgress(ctx context.Context, fn func(StepResult)) (Log, error) {
	return p.run(ctx, fn)
}

func (p *Pipeline) run(ctx context.Context, progress func(StepResult)) (Log, error) {
	log := Log{Started: p.now()}
	for _, step := range p.steps {
		res := p.runStep(ctx, step)
		log.Steps = append(log.Steps, res)
		if progress != nil {
			progress(res)
		}
		if res.Err != nil {
			p.logger.Error("publish: step failed",
				slog.String("step", res.Name),
				slog.Duration("duration", res.Duration),
				slog.String("error", res.Err.Error()),
			)
			log.Finished = p.now()
			return log, fmt.Errorf("publish: step %s: %w", res.Name, res.Err)
		}
		p.logger.Info("publish: step done", slog.String("step", res.Name), slog.Duration("duration", res.Duration))
	}
	log.Finished = p.now()
	return log, nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := step.Run(stepCtx)
	res := StepResult{Name: step.Name(), Output: out, Duration: time.Since(start)}
	if err != nil {
		if ctxErr := stepCtx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		res.Err = err
	}
	return res
}
