package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Analysis is the static report produced by Analyze.
type Analysis struct {
	SyntaxOK    bool     `json:"syntax_ok"`
	SyntaxError string   `json:"syntax_error,omitempty"`
	Imports     []string `json:"imports"`
	Violations  []string `json:"violations,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Safe reports whether the code parses and passes the policy.
func (a *Analysis) Safe() bool {
	return a.SyntaxOK && len(a.Violations) == 0
}

var (
	bareExceptRe  = regexp.MustCompile(`^\s*except\s*:`)
	shellCallRe   = regexp.MustCompile(`\b(os\.system|os\.popen|subprocess\.\w+)\s*\(`)
	openCallRe    = regexp.MustCompile(`(?:^|[^\w.])open\s*\(`)
	withOpenRe    = regexp.MustCompile(`^\s*(async\s+)?with\b`)
	syntaxCheckPy = `import ast, sys
src = sys.stdin.read()
try:
    ast.parse(src)
except SyntaxError as e:
    print("line %s: %s" % (e.lineno, e.msg))
    sys.exit(1)
`
)

// Analyze reports syntax errors, policy violations and common problems
// in code without running it. The syntax check needs an interpreter; when
// none is available the report says so and the lexical checks still run.
func (s *Sandbox) Analyze(ctx context.Context, code string) *Analysis {
	a := &Analysis{Imports: []string{}}
	seen := map[string]bool{}
	for _, imp := range Imports(code) {
		if !seen[imp.Module] {
			seen[imp.Module] = true
			a.Imports = append(a.Imports, imp.Module)
		}
	}

	var pe *PolicyError
	if err := s.cfg.Check(code); errors.As(err, &pe) {
		for _, v := range pe.Violations {
			a.Violations = append(a.Violations, v.String())
		}
	}

	for i, line := range strings.Split(stripLiterals(code), "\n") {
		n := i + 1
		if bareExceptRe.MatchString(line) {
			a.Warnings = append(a.Warnings, fmt.Sprintf("line %d: bare except clause catches every exception", n))
		}
		if m := shellCallRe.FindStringSubmatch(line); m != nil {
			a.Warnings = append(a.Warnings, fmt.Sprintf("line %d: %s runs shell commands", n, m[1]))
		}
		if openCallRe.MatchString(line) && !withOpenRe.MatchString(line) {
			a.Warnings = append(a.Warnings, fmt.Sprintf("line %d: open() outside a with block may leak the file", n))
		}
	}

	a.SyntaxOK, a.SyntaxError = s.checkSyntax(ctx, code)
	return a
}

func (s *Sandbox) checkSyntax(ctx context.Context, code string) (bool, string) {
	interp, err := s.interpreter()
	if err != nil {
		return false, "syntax not checked: " + err.Error()
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, interp, "-B", "-c", syntaxCheckPy)
	cmd.Stdin = strings.NewReader(code)
	cmd.Env = s.env(s.workDir)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			msg = err.Error()
		}
		return false, msg
	}
	return true, ""
}
