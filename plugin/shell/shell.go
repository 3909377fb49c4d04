package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/smallnest/kernelplugins/sandbox"
)

const (
	DefaultTimeout         = 60 * time.Second
	MaxTimeout             = time.Hour
	DefaultMaxOutputLength = sandbox.DefaultMaxOutputLength
	waitDelay              = 2 * time.Second
)

// CommandResult is the outcome of a command that ran to completion.
// Output is stdout on a zero exit and stderr otherwise.
type CommandResult struct {
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// Plugin runs host commands.
type Plugin struct {
	timeout   time.Duration
	maxOutput int
	dir       string
	shell     []string
	logger    log.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

type Option func(*Plugin)

// WithTimeout bounds every command.
func WithTimeout(d time.Duration) Option {
	return func(p *Plugin) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxOutputLength caps stdout and stderr separately. Negative disables
// truncation.
func WithMaxOutputLength(n int) Option {
	return func(p *Plugin) {
		if n != 0 {
			p.maxOutput = n
		}
	}
}

// WithDir sets the working directory of commands.
func WithDir(dir string) Option {
	return func(p *Plugin) { p.dir = dir }
}

// WithShell replaces the interpreter used for command strings, e.g.
// []string{"bash", "-c"}.
func WithShell(argv ...string) Option {
	return func(p *Plugin) {
		if len(argv) > 0 {
			p.shell = argv
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Plugin) { p.logger = l }
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"sh", "-c"}
}

// New creates the plugin.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		timeout:   DefaultTimeout,
		maxOutput: DefaultMaxOutputLength,
		shell:     defaultShell(),
		logger:    log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "shell" }

func (p *Plugin) Description() string { return "Execute commands on the host." }

func (p *Plugin) Functions() []plugin.Function {
	return []plugin.Function{{
		Name: "execute_command",
		Description: fmt.Sprintf("Run a command and return its exit code, stdout and stderr. "+
			"Pass either command, run through %s, or args, executed without a shell.", strings.Join(p.shell, " ")),
		Parameters: []plugin.Parameter{
			{Name: "command", Type: "string", Description: "command line"},
			{Name: "args", Type: "array", Description: "program and arguments"},
			{Name: "timeout_seconds", Type: "integer", Description: fmt.Sprintf("timeout, default %s, at most %s", p.timeout, MaxTimeout)},
		},
		Handler: p.execute,
	}}
}

func (p *Plugin) execute(ctx context.Context, args plugin.Args) plugin.Result {
	line, hasLine, err := args.String("command")
	if err != nil {
		return plugin.Fail(err)
	}
	argv, hasArgv, err := args.StringSlice("args")
	if err != nil {
		return plugin.Fail(err)
	}
	hasLine = hasLine && strings.TrimSpace(line) != ""
	hasArgv = hasArgv && len(argv) > 0
	switch {
	case hasLine && hasArgv:
		return plugin.Fail(plugin.Invalid("pass either command or args, not both"))
	case hasLine:
		argv = append(append([]string(nil), p.shell...), line)
	case !hasArgv:
		return plugin.Fail(plugin.Missing("command"))
	}

	timeout := p.timeout
	secs, err := args.Int("timeout_seconds", 0)
	if err != nil {
		return plugin.Fail(err)
	}
	if secs > int(MaxTimeout/time.Second) {
		return plugin.Fail(plugin.Invalid("timeout_seconds must be at most %d", int(MaxTimeout/time.Second)))
	}
	if secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	display := strings.Join(argv, " ")
	if hasLine {
		display = line
	}
	res, err := p.run(ctx, timeout, display, argv)
	if err != nil {
		p.logger.Warn("command %q failed: %v", display, err)
		if res == nil {
			return plugin.Fail(err)
		}
		return plugin.FailWith(err, res)
	}
	return plugin.OK(res)
}

// Run executes argv. A non-zero exit is reported in the result, not as an
// error; errors mean the command could not start or did not finish.
func (p *Plugin) Run(ctx context.Context, timeout time.Duration, argv ...string) (*CommandResult, error) {
	if len(argv) == 0 {
		return nil, plugin.Missing("command")
	}
	return p.run(ctx, timeout, strings.Join(argv, " "), argv)
}

func (p *Plugin) run(ctx context.Context, timeout time.Duration, display string, argv []string) (*CommandResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.logger.Info("executing command: %s", display)

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = p.dir
	stdout, stderr := sandbox.NewCapture(p.maxOutput), sandbox.NewCapture(p.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	sandbox.ConfigureProcess(cmd)
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()

	out, outCut := stdout.String()
	errOut, errCut := stderr.String()
	res := &CommandResult{
		Command:    display,
		Stdout:     out,
		Stderr:     errOut,
		DurationMS: time.Since(start).Milliseconds(),
		Truncated:  outCut || errCut,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, fmt.Errorf("command %w after %s", plugin.ErrTimeout, timeout)
	}
	if runCtx.Err() != nil {
		res.ExitCode = -1
		return res, plugin.External("execute_command", runCtx.Err())
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case runErr != nil:
		return nil, plugin.External("execute_command", runErr)
	}

	res.Output = strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 {
		res.Output = strings.TrimSpace(res.Stderr)
	}
	p.logger.Debug("command exited with %d in %dms", res.ExitCode, res.DurationMS)
	return res, nil
}
