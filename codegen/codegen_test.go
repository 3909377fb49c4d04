package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// MockLLM records prompts and replays canned replies.
type MockLLM struct {
	responses []string
	err       error
	callCount int
	prompts   []string
}

func (m *MockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.callCount++
	var parts []string
	for _, msg := range messages {
		for _, p := range msg.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				parts = append(parts, tc.Text)
			}
		}
	}
	m.prompts = append(m.prompts, strings.Join(parts, "\n"))
	if m.err != nil {
		return nil, m.err
	}
	resp := m.responses[len(m.responses)-1]
	if m.callCount <= len(m.responses) {
		resp = m.responses[m.callCount-1]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: resp}}}, nil
}

func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// fakeExecutor fails until succeedOn executions have happened.
type fakeExecutor struct {
	succeedOn int
	calls     int
	codes     []string
}

func (f *fakeExecutor) Execute(ctx context.Context, code string) *sandbox.Result {
	f.calls++
	f.codes = append(f.codes, code)
	if f.succeedOn > 0 && f.calls >= f.succeedOn {
		return &sandbox.Result{Status: sandbox.StatusSuccess, Output: "done\n"}
	}
	return &sandbox.Result{Status: sandbox.StatusFailure, Error: fmt.Sprintf("NameError: attempt %d", f.calls), ExitCode: 1}
}

const goodReply = "THINKING: add two numbers\nPLANNING: print the sum\n```python\nprint(2 + 2)\n```"

func newGenerator(t *testing.T, llm llms.Model) *Generator {
	t.Helper()
	g, err := NewGenerator(llm, WithLogger(&log.NoOpLogger{}))
	require.NoError(t, err)
	return g
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{"python block", "text\n```python\nprint(1)\n```\nmore", "print(1)", true},
		{"py tag", "```py\nx = 1\n```", "x = 1", true},
		{"untagged", "```\nprint('u')\n```", "print('u')", true},
		{"python preferred over untagged", "```\nls -l\n```\n```python\nprint(2)\n```", "print(2)", true},
		{"first python block wins", "```python\na = 1\n```\n```python\nb = 2\n```", "a = 1", true},
		{"other language ignored", "```bash\nls\n```", "", false},
		{"no block", "I cannot help with that.", "", false},
		{"empty block", "```python\n\n```", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractCode(tt.reply)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, ContainsCode(goodReply))
}

func TestParseReasoning(t *testing.T) {
	thinking, planning := ParseReasoning(goodReply)
	assert.Equal(t, "add two numbers", thinking)
	assert.Equal(t, "print the sum", planning)

	thinking, planning = ParseReasoning("```python\nx=1\n```")
	assert.Empty(t, thinking)
	assert.Empty(t, planning)
}

func TestGenerator_Generate(t *testing.T) {
	llm := &MockLLM{responses: []string{goodReply}}
	g := newGenerator(t, llm)

	gen, err := g.Generate(context.Background(), Request{Task: "add 2 and 2"})
	require.NoError(t, err)
	assert.Equal(t, "print(2 + 2)", gen.Code)
	assert.Equal(t, "add two numbers", gen.Thinking)
	assert.Equal(t, 1, llm.callCount)
	assert.Contains(t, llm.prompts[0], "Task: add 2 and 2")
	assert.Contains(t, llm.prompts[0], "subprocess")
	assert.NotContains(t, llm.prompts[0], "failed")
}

func TestGenerator_IncludesPriorError(t *testing.T) {
	llm := &MockLLM{responses: []string{goodReply}}
	g := newGenerator(t, llm)

	_, err := g.Generate(context.Background(), Request{
		Task:       "add",
		PriorCode:  "print(x)",
		PriorError: "NameError: name 'x' is not defined",
		Attempt:    1,
	})
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "Attempt 1 failed.")
	assert.Contains(t, llm.prompts[0], "print(x)")
	assert.Contains(t, llm.prompts[0], "NameError: name 'x' is not defined")
}

func TestGenerator_Failures(t *testing.T) {
	_, err := NewGenerator(nil)
	assert.Error(t, err)

	g := newGenerator(t, &MockLLM{responses: []string{"no code here"}})
	_, err = g.Generate(context.Background(), Request{Task: "x"})
	assert.ErrorIs(t, err, ErrNoCode)
	assert.ErrorIs(t, err, ErrGeneration)

	boom := errors.New("rate limited")
	g = newGenerator(t, &MockLLM{err: boom})
	_, err = g.Generate(context.Background(), Request{Task: "x"})
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, boom)

	_, err = g.Generate(context.Background(), Request{Task: " "})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestOrchestrator_SucceedsFirstTime(t *testing.T) {
	llm := &MockLLM{responses: []string{goodReply}}
	exec := &fakeExecutor{succeedOn: 1}
	o := NewOrchestrator(newGenerator(t, llm), exec, WithOrchestratorLogger(&log.NoOpLogger{}))

	out := o.Run(context.Background(), "add")
	assert.True(t, out.OK())
	assert.Equal(t, "print(2 + 2)", out.Code)
	assert.Len(t, out.Attempts, 1)
	assert.Equal(t, 1, llm.callCount)
}

func TestOrchestrator_BoundedRetries(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5} {
		t.Run(fmt.Sprintf("retries=%d", n), func(t *testing.T) {
			llm := &MockLLM{responses: []string{goodReply}}
			exec := &fakeExecutor{}
			o := NewOrchestrator(newGenerator(t, llm), exec,
				WithMaxRetries(n), WithOrchestratorLogger(&log.NoOpLogger{}))

			out := o.Run(context.Background(), "always fails")
			assert.Equal(t, n+1, llm.callCount)
			assert.Equal(t, n+1, exec.calls)
			assert.Len(t, out.Attempts, n+1)
			assert.False(t, out.OK())
			assert.NoError(t, out.Err)
			assert.Equal(t, sandbox.StatusFailure, out.Result.Status)
			assert.Equal(t, fmt.Sprintf("NameError: attempt %d", n+1), out.Result.Error)
		})
	}
}

func TestOrchestrator_DefaultRetries(t *testing.T) {
	llm := &MockLLM{responses: []string{goodReply}}
	o := NewOrchestrator(newGenerator(t, llm), &fakeExecutor{}, WithOrchestratorLogger(&log.NoOpLogger{}))

	assert.Equal(t, DefaultMaxRetries, o.MaxRetries())
	o.Run(context.Background(), "fails")
	assert.Equal(t, DefaultMaxRetries+1, llm.callCount)
}

func TestOrchestrator_RetryLimit(t *testing.T) {
	assert.Equal(t, MaxRetriesLimit, NewOrchestrator(nil, nil, WithMaxRetries(100)).MaxRetries())
	assert.Equal(t, 0, NewOrchestrator(nil, nil, WithMaxRetries(-3)).MaxRetries())
}

type nilGenerator struct{ calls int }

func (g *nilGenerator) Generate(context.Context, Request) (*Generation, error) {
	g.calls++
	return nil, nil
}

type nilExecutor struct{ calls int }

func (e *nilExecutor) Execute(context.Context, string) *sandbox.Result {
	e.calls++
	return nil
}

func TestOrchestrator_EmptyGeneration(t *testing.T) {
	gen := &nilGenerator{}
	exec := &fakeExecutor{}
	o := NewOrchestrator(gen, exec, WithOrchestratorLogger(&log.NoOpLogger{}))

	out := o.Run(context.Background(), "task")
	assert.False(t, out.OK())
	assert.ErrorIs(t, out.Err, ErrGeneration)
	require.NotNil(t, out.Result)
	assert.Equal(t, sandbox.StatusFailure, out.Result.Status)
	assert.Equal(t, 1, gen.calls)
	assert.Zero(t, exec.calls)
}

func TestOrchestrator_NilExecutionResult(t *testing.T) {
	llm := &MockLLM{responses: []string{goodReply}}
	exec := &nilExecutor{}
	o := NewOrchestrator(newGenerator(t, llm), exec,
		WithMaxRetries(1), WithOrchestratorLogger(&log.NoOpLogger{}))

	out := o.Run(context.Background(), "task")
	assert.False(t, out.OK())
	assert.NoError(t, out.Err)
	require.NotNil(t, out.Result)
	assert.Equal(t, "executor returned no result", out.Result.Error)
	assert.Len(t, out.Attempts, 2)
	assert.Equal(t, 2, exec.calls)
}

func TestOrchestrator_RetryFeedsErrorBack(t *testing.T) {
	llm := &MockLLM{responses: []string{
		"```python\nprint(x)\n```",
		"```python\nx = 1\nprint(x)\n```",
	}}
	exec := &fakeExecutor{succeedOn: 2}
	o := NewOrchestrator(newGenerator(t, llm), exec, WithOrchestratorLogger(&log.NoOpLogger{}))

	out := o.Run(context.Background(), "print x")
	require.True(t, out.OK())
	assert.Equal(t, "x = 1\nprint(x)", out.Code)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "NameError: attempt 1")
	assert.Contains(t, llm.prompts[1], "print(x)")
	assert.Equal(t, []string{"print(x)", "x = 1\nprint(x)"}, exec.codes)
}

func TestOrchestrator_GenerationFailureStops(t *testing.T) {
	llm := &MockLLM{responses: []string{"sorry, no code"}}
	exec := &fakeExecutor{}
	o := NewOrchestrator(newGenerator(t, llm), exec, WithOrchestratorLogger(&log.NoOpLogger{}))

	out := o.Run(context.Background(), "anything")
	assert.ErrorIs(t, out.Err, ErrNoCode)
	assert.Equal(t, 1, llm.callCount)
	assert.Equal(t, 0, exec.calls)
	assert.Equal(t, sandbox.StatusFailure, out.Result.Status)
	assert.Contains(t, out.Result.Error, "no python code block")
	assert.Empty(t, out.Attempts)
}

func TestOrchestrator_StopsWhenCancelled(t *testing.T) {
	llm := &MockLLM{responses: []string{goodReply}}
	ctx, cancel := context.WithCancel(context.Background())
	exec := &cancellingExecutor{cancel: cancel}
	o := NewOrchestrator(newGenerator(t, llm), exec, WithOrchestratorLogger(&log.NoOpLogger{}))

	out := o.Run(ctx, "fails")
	assert.Equal(t, 1, llm.callCount)
	assert.Len(t, out.Attempts, 1)
	assert.False(t, out.OK())
}

type cancellingExecutor struct{ cancel context.CancelFunc }

func (c *cancellingExecutor) Execute(ctx context.Context, code string) *sandbox.Result {
	c.cancel()
	return &sandbox.Result{Status: sandbox.StatusFailure, Error: "execution cancelled"}
}

func TestOrchestrator_WithSandbox(t *testing.T) {
	sb, err := sandbox.New(sandbox.Config{Logger: &log.NoOpLogger{}})
	require.NoError(t, err)
	defer sb.Close()

	llm := &MockLLM{responses: []string{
		"```python\nimport os\nprint(os.name)\n```",
		"```python\nprint(sum(range(5)))\n```",
	}}
	o := NewOrchestrator(newGenerator(t, llm), sb, WithOrchestratorLogger(&log.NoOpLogger{}))

	out := o.Run(context.Background(), "sum the numbers below five")
	require.Len(t, out.Attempts, 2)
	assert.Contains(t, out.Attempts[0].Result.Error, `restricted module "os"`)
	assert.Contains(t, llm.prompts[1], `restricted module "os"`)
	if out.Attempts[1].Result.Error != "" && strings.Contains(out.Attempts[1].Result.Error, "interpreter not found") {
		t.Skip("python interpreter not available")
	}
	assert.True(t, out.OK(), out.Result.Error)
	assert.Equal(t, "10", strings.TrimSpace(out.Result.Output))
}
