package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/kernelplugins/log"
)

// Status is the outcome class of one run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusTimeout Status = "timeout"
)

// ErrTimeout is returned by Result.Err for runs that hit the time limit.
var ErrTimeout = errors.New("execution timed out")

// Result describes one execution. Output and Error are already truncated.
type Result struct {
	Status    Status        `json:"status"`
	Output    string        `json:"output"`
	Error     string        `json:"error,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
	Truncated bool          `json:"truncated,omitempty"`
	Installed []string      `json:"installed,omitempty"`
}

// OK reports whether the run succeeded.
func (r *Result) OK() bool { return r != nil && r.Status == StatusSuccess }

// Err converts a failed result into an error; nil on success.
func (r *Result) Err() error {
	switch {
	case r == nil:
		return errors.New("no result")
	case r.Status == StatusSuccess:
		return nil
	case r.Status == StatusTimeout:
		return fmt.Errorf("%w: %s", ErrTimeout, r.Error)
	default:
		return errors.New(r.Error)
	}
}

// String renders the result the way it is shown to a model.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	out := strings.TrimRight(r.Output, "\n")
	errText := strings.TrimRight(r.Error, "\n")
	if out == "" && errText == "" && r.OK() {
		return "Code executed successfully with no output."
	}
	var b strings.Builder
	if out != "" {
		b.WriteString("Output:\n" + out)
	}
	if errText != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Error:\n" + errText)
	}
	return b.String()
}

func failure(msg string) *Result {
	return &Result{Status: StatusFailure, Error: msg, ExitCode: -1}
}

// waitDelay bounds how long Wait blocks on pipes held open by orphaned
// grandchildren after the interpreter itself has exited or been killed.
const waitDelay = 2 * time.Second

// Sandbox runs Python code in a child interpreter under a Config.
// It is safe for concurrent use; each run gets its own directory.
type Sandbox struct {
	cfg     Config
	logger  log.PhaseLogger
	workDir string
	runner  string
	libs    string

	lookOnce sync.Once
	interp   string
	lookErr  error
}

// New creates a Sandbox with its working directory under the system
// temp dir. Call Close to remove it.
func New(cfg Config) (*Sandbox, error) {
	cfg = cfg.withDefaults()
	dir, err := os.MkdirTemp("", "kernelplugins-sandbox-")
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox dir: %w", err)
	}
	runner := filepath.Join(dir, "runner.py")
	if err := os.WriteFile(runner, []byte(runnerScript), 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write runner: %w", err)
	}
	return &Sandbox{
		cfg:     cfg,
		logger:  log.Phases(cfg.Logger),
		workDir: dir,
		runner:  runner,
		libs:    filepath.Join(dir, ".pylibs"),
	}, nil
}

// Config returns the effective configuration.
func (s *Sandbox) Config() Config { return s.cfg }

// Close removes the sandbox's working directory, including packages
// installed into it.
func (s *Sandbox) Close() error {
	return os.RemoveAll(s.workDir)
}

// Execute runs code and reports what happened. It never returns an
// error: policy violations, a missing interpreter, exceptions, non-zero
// exits and timeouts are all described by the Result.
func (s *Sandbox) Execute(ctx context.Context, code string) *Result {
	start := time.Now()
	res := s.execute(ctx, code)
	res.Duration = time.Since(start)
	s.logger.Execution(res.String(), res.OK())
	return res
}

func (s *Sandbox) execute(ctx context.Context, code string) *Result {
	if strings.TrimSpace(code) == "" {
		return failure("no code provided")
	}
	if err := s.cfg.Check(code); err != nil {
		s.logger.Warn("rejected code: %v", err)
		return failure(err.Error())
	}
	interp, err := s.interpreter()
	if err != nil {
		return failure(err.Error())
	}

	res := s.run(ctx, interp, code)
	if res.Status != StatusFailure || !s.cfg.AutoInstall || !s.cfg.AllowNetwork {
		return res
	}
	pkg, ok := s.missingPackage(res.Error)
	if !ok {
		return res
	}
	if err := s.install(ctx, interp, pkg); err != nil {
		s.logger.Warn("auto-install of %s failed: %v", pkg, err)
		return res
	}
	retry := s.run(ctx, interp, code)
	retry.Installed = []string{pkg}
	return retry
}

func (s *Sandbox) interpreter() (string, error) {
	s.lookOnce.Do(func() {
		candidates := []string{"python3", "python"}
		if s.cfg.Interpreter != "" {
			candidates = []string{s.cfg.Interpreter}
		}
		for _, c := range candidates {
			if p, err := exec.LookPath(c); err == nil {
				s.interp = p
				return
			}
		}
		s.lookErr = fmt.Errorf("python interpreter not found (tried %s)", strings.Join(candidates, ", "))
	})
	return s.interp, s.lookErr
}

func (s *Sandbox) run(ctx context.Context, interp, code string) *Result {
	dir := filepath.Join(s.workDir, "run-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return failure(fmt.Sprintf("failed to create run dir: %v", err))
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "main.py")
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return failure(fmt.Sprintf("failed to write script: %v", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var memory int64
	if s.cfg.MemoryLimitMB > 0 {
		memory = int64(s.cfg.MemoryLimitMB) << 20
	}
	cmd := exec.CommandContext(runCtx, interp, "-u", "-B", s.runner, script,
		strconv.FormatInt(memory, 10), flag(s.cfg.AllowNetwork), flag(s.cfg.AllowFileWrite))
	cmd.Dir = dir
	cmd.Env = s.env(dir)
	stdout, stderr := NewCapture(s.cfg.MaxOutputLength), NewCapture(s.cfg.MaxOutputLength)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	ConfigureProcess(cmd)
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()

	out, outCut := stdout.String()
	errText, errCut := stderr.String()
	res := &Result{Output: out, Error: errText, Truncated: outCut || errCut}

	s.classify(res, runErr, runCtx.Err())
	return res
}

// classify sets the status of a finished run. A process that exited
// cleanly is a success even if the deadline passed while it was exiting.
func (s *Sandbox) classify(res *Result, runErr, ctxErr error) {
	switch {
	case runErr == nil:
		res.Status = StatusSuccess
	case errors.Is(ctxErr, context.DeadlineExceeded):
		res.Status = StatusTimeout
		res.ExitCode = -1
		res.Error = strings.TrimSpace(res.Error + "\n" + fmt.Sprintf("execution timed out after %s", s.cfg.Timeout))
	case ctxErr != nil:
		res.Status = StatusFailure
		res.ExitCode = -1
		res.Error = strings.TrimSpace(res.Error + "\nexecution cancelled: " + ctxErr.Error())
	default:
		res.Status = StatusFailure
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if strings.TrimSpace(res.Error) == "" {
				res.Error = fmt.Sprintf("process exited with status %d", res.ExitCode)
			}
		} else {
			res.ExitCode = -1
			res.Error = fmt.Sprintf("failed to run interpreter: %v", runErr)
		}
	}
}

// env builds the interpreter environment from an allowlist of host
// variables; nothing else from the host leaks into the child.
func (s *Sandbox) env(dir string) []string {
	env := []string{
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"PYTHONUNBUFFERED=1",
		"PYTHONIOENCODING=utf-8",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONNOUSERSITE=1",
	}
	keep := []string{"PATH", "LANG", "LC_ALL"}
	if runtime.GOOS == "windows" {
		keep = append(keep, "SYSTEMROOT", "TEMP", "TMP")
	}
	for _, k := range keep {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	if _, err := os.Stat(s.libs); err == nil {
		env = append(env, "PYTHONPATH="+s.libs)
	}
	for k, v := range s.cfg.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
