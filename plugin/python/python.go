package python

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallnest/kernelplugins/codegen"
	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/smallnest/kernelplugins/sandbox"
)

// Runner executes and inspects Python code. *sandbox.Sandbox implements it.
type Runner interface {
	codegen.Executor
	Analyze(ctx context.Context, code string) *sandbox.Analysis
}

var _ Runner = (*sandbox.Sandbox)(nil)

// Plugin exposes the sandbox and, when a generator is configured, code
// generation.
type Plugin struct {
	runner     Runner
	generator  codegen.CodeGenerator
	maxRetries int
	logger     log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

// WithGenerator enables generate_python_code and generate_and_execute_code.
func WithGenerator(g codegen.CodeGenerator) Option {
	return func(p *Plugin) { p.generator = g }
}

// WithMaxRetries sets the default retry budget of generate_and_execute_code.
func WithMaxRetries(n int) Option {
	return func(p *Plugin) {
		if n >= 0 {
			p.maxRetries = min(n, codegen.MaxRetriesLimit)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

// New creates the plugin.
func New(r Runner, opts ...Option) *Plugin {
	p := &Plugin{runner: r, maxRetries: codegen.DefaultMaxRetries, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "python" }

func (p *Plugin) Description() string {
	if p.generator != nil {
		return "Generate and run Python code in a restricted subprocess."
	}
	return "Run Python code in a restricted subprocess."
}

var (
	codeParam = plugin.Parameter{Name: "code", Type: "string", Required: true, Description: "Python source, optionally in a ```python fence"}
	taskParam = plugin.Parameter{Name: "task", Type: "string", Required: true, Description: "what the code should do"}
)

func (p *Plugin) Functions() []plugin.Function {
	fns := []plugin.Function{
		{
			Name:        "execute_python",
			Description: "Execute Python code and return what it printed.",
			Parameters:  []plugin.Parameter{codeParam},
			Handler:     p.executePython,
		},
		{
			Name:        "analyze_code",
			Description: "Check Python code for syntax errors, restricted imports and risky patterns without running it.",
			Parameters:  []plugin.Parameter{codeParam},
			Handler:     p.analyzeCode,
		},
	}
	if p.generator == nil {
		return fns
	}
	return append(fns,
		plugin.Function{
			Name:        "generate_python_code",
			Description: "Write Python code for a task without running it.",
			Parameters:  []plugin.Parameter{taskParam},
			Handler:     p.generateCode,
		},
		plugin.Function{
			Name:        "generate_and_execute_code",
			Description: "Write Python code for a task, run it and fix it from the error until it succeeds or retries run out.",
			Parameters: []plugin.Parameter{taskParam,
				{Name: "max_retries", Type: "integer", Description: fmt.Sprintf("regenerations after the first attempt, at most %d", codegen.MaxRetriesLimit)}},
			Handler: p.generateAndExecute,
		},
	)
}

// Execution is the payload of execute_python.
type Execution struct {
	*sandbox.Result
	Summary    string `json:"summary"`
	DurationMS int64  `json:"duration_ms"`
}

func execution(res *sandbox.Result) *Execution {
	return &Execution{Result: res, Summary: res.String(), DurationMS: res.Duration.Milliseconds()}
}

// classified carries a message verbatim while matching a plugin sentinel.
type classified struct {
	msg   string
	class error
}

func (e *classified) Error() string { return e.msg }
func (e *classified) Unwrap() error { return e.class }

// resultErr classifies a failed execution.
func resultErr(res *sandbox.Result) error {
	msg := strings.TrimSpace(res.Error)
	if msg == "" {
		msg = "execution failed with status " + string(res.Status)
	}
	if res.Status == sandbox.StatusTimeout {
		return &classified{msg: msg, class: plugin.ErrTimeout}
	}
	return &classified{msg: msg, class: plugin.ErrExternalCall}
}

func generationErr(err error) error {
	return &classified{msg: err.Error(), class: plugin.ErrGeneration}
}

// source strips a markdown fence when the caller pasted a model reply.
func source(code string) string {
	if strings.Contains(code, "```") {
		if c, ok := codegen.ExtractCode(code); ok {
			return c
		}
	}
	return code
}

func (p *Plugin) executePython(ctx context.Context, args plugin.Args) plugin.Result {
	code, err := args.RequireString("code")
	if err != nil {
		return plugin.Fail(err)
	}
	res := p.runner.Execute(ctx, source(code))
	if !res.OK() {
		p.logger.Warn("python execution %s: %s", res.Status, res.Error)
		return plugin.FailWith(resultErr(res), execution(res))
	}
	return plugin.OK(execution(res))
}

func (p *Plugin) analyzeCode(ctx context.Context, args plugin.Args) plugin.Result {
	code, err := args.RequireString("code")
	if err != nil {
		return plugin.Fail(err)
	}
	a := p.runner.Analyze(ctx, source(code))
	return plugin.OK(map[string]any{"safe": a.Safe(), "analysis": a})
}

func (p *Plugin) generateCode(ctx context.Context, args plugin.Args) plugin.Result {
	task, err := args.RequireString("task")
	if err != nil {
		return plugin.Fail(err)
	}
	gen, err := p.generator.Generate(ctx, codegen.Request{Task: task})
	if err != nil {
		return plugin.Fail(generationErr(err))
	}
	return plugin.OK(gen)
}

// Run is the payload of generate_and_execute_code.
type Run struct {
	*codegen.Outcome
	Summary    string `json:"summary"`
	DurationMS int64  `json:"duration_ms"`
}

func (p *Plugin) generateAndExecute(ctx context.Context, args plugin.Args) plugin.Result {
	task, err := args.RequireString("task")
	if err != nil {
		return plugin.Fail(err)
	}
	retries, err := args.Int("max_retries", p.maxRetries)
	if err != nil {
		return plugin.Fail(err)
	}
	if retries < 0 || retries > codegen.MaxRetriesLimit {
		return plugin.Fail(plugin.Invalid("max_retries must be between 0 and %d", codegen.MaxRetriesLimit))
	}

	start := time.Now()
	orch := codegen.NewOrchestrator(p.generator, p.runner,
		codegen.WithMaxRetries(retries), codegen.WithOrchestratorLogger(p.logger))
	out := orch.Run(ctx, task)
	run := &Run{Outcome: out, Summary: out.Result.String(), DurationMS: time.Since(start).Milliseconds()}

	switch {
	case out.OK():
		return plugin.OK(run)
	case out.Err != nil:
		return plugin.FailWith(generationErr(out.Err), run)
	default:
		return plugin.FailWith(resultErr(out.Result), run)
	}
}
