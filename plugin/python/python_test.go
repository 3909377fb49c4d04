package python

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/smallnest/kernelplugins/codegen"
	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/smallnest/kernelplugins/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	results map[string]*sandbox.Result
	codes   []string
}

func (f *fakeRunner) Execute(_ context.Context, code string) *sandbox.Result {
	f.codes = append(f.codes, code)
	if r, ok := f.results[code]; ok {
		return r
	}
	return &sandbox.Result{Status: sandbox.StatusFailure, Error: "NameError: name 'x' is not defined", ExitCode: 1}
}

func (f *fakeRunner) Analyze(_ context.Context, code string) *sandbox.Analysis {
	return &sandbox.Analysis{SyntaxOK: true, Imports: []string{"os"}, Violations: []string{`import of restricted module "os"`}}
}

type fakeGenerator struct {
	codes []string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, req codegen.Request) (*codegen.Generation, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	i := min(g.calls-1, len(g.codes)-1)
	return &codegen.Generation{Code: g.codes[i]}, nil
}

func call(t *testing.T, p *Plugin, fn string, args plugin.Args) plugin.Result {
	t.Helper()
	f, ok := plugin.Lookup(p, fn)
	require.True(t, ok, fn)
	return f.Call(context.Background(), args)
}

func TestFunctions(t *testing.T) {
	names := func(p *Plugin) []string {
		var out []string
		for _, f := range p.Functions() {
			out = append(out, f.Name)
		}
		return out
	}
	assert.Equal(t, []string{"execute_python", "analyze_code"}, names(New(&fakeRunner{})))
	assert.Equal(t, []string{"execute_python", "analyze_code", "generate_python_code", "generate_and_execute_code"},
		names(New(&fakeRunner{}, WithGenerator(&fakeGenerator{}))))
}

func TestExecutePython(t *testing.T) {
	r := &fakeRunner{results: map[string]*sandbox.Result{
		"print(2 + 2)": {Status: sandbox.StatusSuccess, Output: "4\n"},
	}}
	p := New(r, WithLogger(&log.NoOpLogger{}))

	res := call(t, p, "execute_python", plugin.Args{"code": "Here you go:\n```python\nprint(2 + 2)\n```"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"print(2 + 2)"}, r.codes)
	ex := res.Data.(*Execution)
	assert.Equal(t, "4\n", ex.Output)
	assert.Equal(t, "Output:\n4", ex.Summary)

	res = call(t, p, "execute_python", plugin.Args{"code": "print(x)"})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindExternalCall, res.Kind)
	assert.Equal(t, "NameError: name 'x' is not defined", res.Error)
	assert.Equal(t, 1, res.Data.(*Execution).ExitCode)
}

func TestExecutePython_Timeout(t *testing.T) {
	r := &fakeRunner{results: map[string]*sandbox.Result{
		"while True: pass": {Status: sandbox.StatusTimeout, Error: "execution timed out after 1s", ExitCode: -1},
	}}
	res := call(t, New(r, WithLogger(&log.NoOpLogger{})), "execute_python", plugin.Args{"code": "while True: pass"})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindTimeout, res.Kind)
	assert.Equal(t, "execution timed out after 1s", res.Error)
}

func TestAnalyzeCode(t *testing.T) {
	res := call(t, New(&fakeRunner{}), "analyze_code", plugin.Args{"code": "import os"})
	require.True(t, res.Success)
	assert.Equal(t, false, res.Data.(map[string]any)["safe"])
}

func TestGeneratePythonCode(t *testing.T) {
	p := New(&fakeRunner{}, WithGenerator(&fakeGenerator{codes: []string{"print(1)"}}))
	res := call(t, p, "generate_python_code", plugin.Args{"task": "print one"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "print(1)", res.Data.(*codegen.Generation).Code)

	p = New(&fakeRunner{}, WithGenerator(&fakeGenerator{err: codegen.ErrNoCode}))
	res = call(t, p, "generate_python_code", plugin.Args{"task": "print one"})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindGeneration, res.Kind)
}

func TestGenerateAndExecute(t *testing.T) {
	r := &fakeRunner{results: map[string]*sandbox.Result{
		"print(41 + 1)": {Status: sandbox.StatusSuccess, Output: "42\n"},
	}}
	g := &fakeGenerator{codes: []string{"print(x)", "print(41 + 1)"}}
	p := New(r, WithGenerator(g), WithLogger(&log.NoOpLogger{}))

	res := call(t, p, "generate_and_execute_code", plugin.Args{"task": "answer"})
	require.True(t, res.Success, res.Error)
	run := res.Data.(*Run)
	assert.Len(t, run.Attempts, 2)
	assert.Equal(t, "print(41 + 1)", run.Code)
	assert.Equal(t, "Output:\n42", run.Summary)
}

func TestGenerateAndExecute_RetryBudget(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		g := &fakeGenerator{codes: []string{"print(x)"}}
		p := New(&fakeRunner{}, WithGenerator(g), WithLogger(&log.NoOpLogger{}))

		res := call(t, p, "generate_and_execute_code", plugin.Args{"task": "t", "max_retries": n})
		assert.False(t, res.Success)
		assert.Equal(t, plugin.KindExternalCall, res.Kind)
		assert.Equal(t, n+1, g.calls)
		assert.Len(t, res.Data.(*Run).Attempts, n+1)
	}

	g := &fakeGenerator{codes: []string{"print(x)"}}
	p := New(&fakeRunner{}, WithGenerator(g), WithLogger(&log.NoOpLogger{}))
	res := call(t, p, "generate_and_execute_code", plugin.Args{"task": "t", "max_retries": 500})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindValidation, res.Kind)
	assert.Equal(t, 0, g.calls)

	res = call(t, p, "generate_and_execute_code", plugin.Args{"task": "t", "max_retries": codegen.MaxRetriesLimit})
	assert.Equal(t, plugin.KindExternalCall, res.Kind)
	assert.Equal(t, codegen.MaxRetriesLimit+1, g.calls)
}

func TestGenerateAndExecute_GenerationFailure(t *testing.T) {
	g := &fakeGenerator{err: errors.New("model unavailable")}
	p := New(&fakeRunner{}, WithGenerator(g), WithLogger(&log.NoOpLogger{}))

	res := call(t, p, "generate_and_execute_code", plugin.Args{"task": "t"})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindGeneration, res.Kind)
	assert.Equal(t, "model unavailable", res.Error)
	assert.Equal(t, 1, g.calls)

	res = call(t, p, "generate_and_execute_code", plugin.Args{"task": "t", "max_retries": -1})
	assert.Equal(t, plugin.KindValidation, res.Kind)
}

func TestWithSandbox(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	sb, err := sandbox.New(sandbox.DefaultConfig())
	require.NoError(t, err)
	defer sb.Close()
	p := New(sb, WithLogger(&log.NoOpLogger{}))

	res := call(t, p, "execute_python", plugin.Args{"code": "print(sum(range(5)))"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "10\n", res.Data.(*Execution).Output)

	res = call(t, p, "execute_python", plugin.Args{"code": "import subprocess"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "subprocess")
}
