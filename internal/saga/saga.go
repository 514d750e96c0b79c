// Package saga runs multi-step operations as an ordered list of
// (forward, compensate) closures. When a forward action fails, every step
// that already completed is compensated in reverse completion order.
package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StatePending                State = "PENDING"
	StateCompensating           State = "COMPENSATING"
	StateComplete               State = "COMPLETE"
	StateFailed                 State = "FAILED"
	StateCompensationIncomplete State = "COMPENSATION_INCOMPLETE"
)

// StepDone is the state reached once n steps have completed.
func StepDone(n int) State {
	return State(fmt.Sprintf("S%d_DONE", n))
}

// Step is one forward action and its inverse. Compensate may be nil for
// steps with nothing to undo.
type Step struct {
	Name       string
	Forward    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepRecord is the outcome of a single step within a run.
type StepRecord struct {
	Name            string
	Completed       bool
	Err             error
	Compensated     bool
	CompensationErr error
}

// Result is the terminal report of a run.
type Result struct {
	State           State
	FailedStep      string
	Err             error
	CompensationErr error
	Steps           []StepRecord
}

func (r *Result) Succeeded() bool { return r.State == StateComplete }

const DefaultCompensationTimeout = 10 * time.Second

type Runner struct {
	name                string
	logger              *zap.Logger
	compensationTimeout time.Duration
}

type Option func(*Runner)

// WithCompensationTimeout bounds each compensation call.
func WithCompensationTimeout(d time.Duration) Option {
	return func(r *Runner) { r.compensationTimeout = d }
}

func NewRunner(name string, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		name:                name,
		logger:              logger,
		compensationTimeout: DefaultCompensationTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type execution struct {
	runner *Runner
	logger *zap.Logger

	mu        sync.Mutex
	state     State
	completed []int
	records   []StepRecord
	steps     []Step
	failedAt  string
	failure   error
}

// Run executes stages in order. Steps within one stage have no data
// dependency on each other and run concurrently; the next stage starts only
// after every step of the previous one has returned. A failing step does not
// cancel its siblings, so everything that finished is known and compensated.
func (r *Runner) Run(ctx context.Context, stages ...[]Step) *Result {
	ex := &execution{
		runner: r,
		logger: r.logger.With(zap.String("saga", r.name)),
		state:  StatePending,
	}

	for _, stage := range stages {
		if len(stage) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			ex.fail(stage[0].Name, err)
			break
		}
		if !ex.runStage(ctx, stage) {
			break
		}
	}

	if ex.failure == nil {
		ex.transition(StateComplete)
		return ex.result(nil)
	}
	return ex.result(ex.compensate(ctx))
}

func (ex *execution) runStage(ctx context.Context, stage []Step) bool {
	base := len(ex.steps)
	ex.steps = append(ex.steps, stage...)
	for _, s := range stage {
		ex.records = append(ex.records, StepRecord{Name: s.Name})
	}

	if len(stage) == 1 {
		ex.runStep(ctx, base)
		return ex.failure == nil
	}

	var g errgroup.Group
	for i := range stage {
		idx := base + i
		g.Go(func() error {
			ex.runStep(ctx, idx)
			return nil
		})
	}
	_ = g.Wait()
	return ex.failure == nil
}

func (ex *execution) runStep(ctx context.Context, idx int) {
	step := ex.steps[idx]
	err := step.Forward(ctx)

	ex.mu.Lock()
	defer ex.mu.Unlock()

	if err != nil {
		ex.records[idx].Err = err
		ex.logger.Warn("saga step failed", zap.String("step", step.Name), zap.Error(err))
		if ex.failure == nil {
			ex.failedAt = step.Name
			ex.failure = err
		}
		return
	}

	ex.records[idx].Completed = true
	ex.completed = append(ex.completed, idx)
	ex.transitionLocked(StepDone(len(ex.completed)))
}

func (ex *execution) fail(step string, err error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.failedAt = step
	ex.failure = err
}

// compensate unwinds completed steps newest first. It ignores caller
// cancellation: once started, every registered compensation is attempted.
func (ex *execution) compensate(ctx context.Context) error {
	ex.transition(StateCompensating)
	detached := context.WithoutCancel(ctx)

	var result *multierror.Error
	for i := len(ex.completed) - 1; i >= 0; i-- {
		idx := ex.completed[i]
		step := ex.steps[idx]
		if step.Compensate == nil {
			continue
		}

		cctx, cancel := context.WithTimeout(detached, ex.runner.compensationTimeout)
		err := step.Compensate(cctx)
		cancel()

		if err != nil {
			ex.records[idx].CompensationErr = err
			result = multierror.Append(result, fmt.Errorf("%s: %w", step.Name, err))
			ex.logger.Error("saga compensation failed", zap.String("step", step.Name), zap.Error(err))
			continue
		}
		ex.records[idx].Compensated = true
		ex.logger.Info("saga step compensated", zap.String("step", step.Name))
	}

	if err := result.ErrorOrNil(); err != nil {
		ex.transition(StateCompensationIncomplete)
		return err
	}
	ex.transition(StateFailed)
	return nil
}

func (ex *execution) transition(s State) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.transitionLocked(s)
}

func (ex *execution) transitionLocked(s State) {
	ex.logger.Debug("saga state", zap.String("from", string(ex.state)), zap.String("to", string(s)))
	ex.state = s
}

func (ex *execution) result(compErr error) *Result {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	records := make([]StepRecord, len(ex.records))
	copy(records, ex.records)
	return &Result{
		State:           ex.state,
		FailedStep:      ex.failedAt,
		Err:             ex.failure,
		CompensationErr: compErr,
		Steps:           records,
	}
}

// Policy bounds an external call with a per-attempt timeout and a limited
// number of retries. Retryable decides whether an error is worth another
// attempt; nil means every error is.
type Policy struct {
	Timeout   time.Duration
	Retries   int
	Retryable func(error) bool
}

func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return err
		}

		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err = fn(actx)
		cancel()

		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return err
}
