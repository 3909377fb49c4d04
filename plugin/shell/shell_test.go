package shell

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/smallnest/kernelplugins/log"
	"github.com/smallnest/kernelplugins/plugin"
	"github.com/smallnest/kernelplugins/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func run(t *testing.T, p *Plugin, args plugin.Args) plugin.Result {
	t.Helper()
	f, ok := plugin.Lookup(p, "execute_command")
	require.True(t, ok)
	return f.Call(context.Background(), args)
}

func TestExecuteCommand(t *testing.T) {
	requireShell(t)
	p := New(WithLogger(&log.NoOpLogger{}))

	res := run(t, p, plugin.Args{"command": "echo hello; echo oops >&2"})
	require.True(t, res.Success, res.Error)
	cr := res.Data.(*CommandResult)
	assert.Equal(t, 0, cr.ExitCode)
	assert.Equal(t, "hello\n", cr.Stdout)
	assert.Equal(t, "oops\n", cr.Stderr)
	assert.Equal(t, "hello", cr.Output)
	assert.Equal(t, "echo hello; echo oops >&2", cr.Command)
}

func TestExecuteCommand_Argv(t *testing.T) {
	requireShell(t)
	p := New(WithLogger(&log.NoOpLogger{}))

	res := run(t, p, plugin.Args{"args": []any{"sh", "-c", "printf '%s' \"$0\"", "a b; c"}})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "a b; c", res.Data.(*CommandResult).Stdout)
}

func TestExecuteCommand_NonZeroExit(t *testing.T) {
	requireShell(t)
	p := New(WithLogger(&log.NoOpLogger{}))

	res := run(t, p, plugin.Args{"command": "echo bad input >&2; exit 3"})
	require.True(t, res.Success, res.Error)
	cr := res.Data.(*CommandResult)
	assert.Equal(t, 3, cr.ExitCode)
	assert.Equal(t, "bad input", cr.Output)
}

func TestExecuteCommand_Timeout(t *testing.T) {
	requireShell(t)
	p := New(WithTimeout(200*time.Millisecond), WithLogger(&log.NoOpLogger{}))

	start := time.Now()
	res := run(t, p, plugin.Args{"command": "sleep 10 & sleep 10; echo done"})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindTimeout, res.Kind)
	assert.Contains(t, res.Error, "timed out after 200ms")
	require.NotNil(t, res.Data)
	assert.Equal(t, -1, res.Data.(*CommandResult).ExitCode)
}

func TestExecuteCommand_StartFailure(t *testing.T) {
	p := New(WithLogger(&log.NoOpLogger{}))
	res := run(t, p, plugin.Args{"args": []any{"definitely-not-a-real-binary-9f3a"}})
	assert.False(t, res.Success)
	assert.Equal(t, plugin.KindExternalCall, res.Kind)
	assert.NotEmpty(t, res.Error)
}

func TestExecuteCommand_Truncation(t *testing.T) {
	requireShell(t)
	p := New(WithMaxOutputLength(100), WithLogger(&log.NoOpLogger{}))

	res := run(t, p, plugin.Args{"command": "i=0; while [ $i -lt 500 ]; do printf x; i=$((i+1)); done"})
	require.True(t, res.Success, res.Error)
	cr := res.Data.(*CommandResult)
	assert.True(t, cr.Truncated)
	assert.Equal(t, strings.Repeat("x", 100)+sandbox.TruncationMarker, cr.Stdout)
}

func TestExecuteCommand_Dir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	p := New(WithDir(dir), WithLogger(&log.NoOpLogger{}))

	res := run(t, p, plugin.Args{"command": "pwd -P"})
	require.True(t, res.Success, res.Error)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(res.Data.(*CommandResult).Stdout), dir[strings.LastIndex(dir, "/"):]))
}

func TestExecuteCommand_Validation(t *testing.T) {
	p := New()
	for _, args := range []plugin.Args{
		{},
		{"command": "   "},
		{"command": "ls", "args": []any{"ls"}},
		{"command": "ls", "timeout_seconds": 1.5},
		{"command": "ls", "timeout_seconds": 3601},
		{"command": "ls", "timeout_seconds": 2147483647},
	} {
		res := run(t, p, args)
		assert.False(t, res.Success)
		assert.Equal(t, plugin.KindValidation, res.Kind, args)
	}
}
