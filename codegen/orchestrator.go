package codegen

import (
	"context"
	"fmt"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/sandbox"
)

const (
	// DefaultMaxRetries is the number of regenerations after the first attempt.
	DefaultMaxRetries = 2
	// MaxRetriesLimit caps the retry budget of a single run.
	MaxRetriesLimit = 5
)

// CodeGenerator produces code for a request.
type CodeGenerator interface {
	Generate(ctx context.Context, req Request) (*Generation, error)
}

// Executor runs code. Implementations report every outcome in the result.
type Executor interface {
	Execute(ctx context.Context, code string) *sandbox.Result
}

var (
	_ CodeGenerator = (*Generator)(nil)
	_ Executor      = (*sandbox.Sandbox)(nil)
)

// Attempt records one generate-and-execute round.
type Attempt struct {
	Number int             `json:"number"`
	Code   string          `json:"code,omitempty"`
	Result *sandbox.Result `json:"result"`
}

// Outcome is the terminal state of a run. Result is the last execution
// result, or a synthesized failure when generation itself failed, in
// which case Err is set as well.
type Outcome struct {
	Task     string          `json:"task"`
	Code     string          `json:"code,omitempty"`
	Result   *sandbox.Result `json:"result"`
	Attempts []Attempt       `json:"attempts"`
	Err      error           `json:"-"`
}

// OK reports whether the final execution succeeded.
func (o *Outcome) OK() bool { return o.Err == nil && o.Result.OK() }

type state int

const (
	stateGenerate state = iota
	stateExecute
	stateRetry
	stateDone
)

// Orchestrator drives generate, execute and retry until the code runs or
// the retry budget is spent.
type Orchestrator struct {
	generator  CodeGenerator
	executor   Executor
	maxRetries int
	logger     log.PhaseLogger
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithMaxRetries sets how many times a failed execution is regenerated.
// The value is clamped to [0, MaxRetriesLimit].
func WithMaxRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxRetries = min(max(n, 0), MaxRetriesLimit)
	}
}

// WithOrchestratorLogger sets the logger for section banners and retries.
func WithOrchestratorLogger(l log.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = log.Phases(l) }
}

// NewOrchestrator creates an Orchestrator with DefaultMaxRetries.
func NewOrchestrator(gen CodeGenerator, exec Executor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		generator:  gen,
		executor:   exec,
		maxRetries: DefaultMaxRetries,
		logger:     log.Phases(nil),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MaxRetries returns the retry budget.
func (o *Orchestrator) MaxRetries() int { return o.maxRetries }

// Run generates code for task and executes it, regenerating from the
// execution error while retries remain. The generator is called at most
// MaxRetries+1 times. Run stops early when ctx is done.
func (o *Orchestrator) Run(ctx context.Context, task string) *Outcome {
	out := &Outcome{Task: task, Attempts: []Attempt{}}
	req := Request{Task: task}
	var gen *Generation

	o.logger.Section("Generate and execute")
	for st := stateGenerate; st != stateDone; {
		switch st {
		case stateGenerate:
			var err error
			gen, err = o.generator.Generate(ctx, req)
			if err == nil && gen == nil {
				err = fmt.Errorf("%w: generator returned nothing", ErrGeneration)
			}
			if err != nil {
				o.logger.Error("code generation failed: %v", err)
				out.Err = err
				out.Result = &sandbox.Result{Status: sandbox.StatusFailure, Error: err.Error(), ExitCode: -1}
				st = stateDone
				continue
			}
			out.Code = gen.Code
			st = stateExecute

		case stateExecute:
			res := o.executor.Execute(ctx, gen.Code)
			if res == nil {
				res = &sandbox.Result{Status: sandbox.StatusFailure, Error: "executor returned no result", ExitCode: -1}
			}
			out.Result = res
			out.Attempts = append(out.Attempts, Attempt{Number: len(out.Attempts) + 1, Code: gen.Code, Result: res})
			if res.OK() {
				st = stateDone
			} else {
				st = stateRetry
			}

		case stateRetry:
			attempt := len(out.Attempts)
			if attempt > o.maxRetries {
				o.logger.Warn("giving up after %d attempts", attempt)
				st = stateDone
				continue
			}
			if err := ctx.Err(); err != nil {
				o.logger.Warn("not retrying: %v", err)
				st = stateDone
				continue
			}
			o.logger.Info("🔄 attempt %d failed (%s), regenerating", attempt, out.Result.Status)
			req = Request{
				Task:       task,
				PriorError: failureText(out.Result),
				PriorCode:  gen.Code,
				Attempt:    attempt,
			}
			st = stateGenerate
		}
	}
	return out
}

func failureText(res *sandbox.Result) string {
	if res.Error != "" {
		return res.Error
	}
	return fmt.Sprintf("execution finished with status %s and exit code %d", res.Status, res.ExitCode)
}
