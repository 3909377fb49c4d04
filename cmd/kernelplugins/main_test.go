package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "TAVILY_API_KEY", "SERPAPI_API_KEY", "BRAVE_API_KEY",
		"DATABASE_URL", "SQLITE_PATH", "MONGODB_URI", "REDIS_ADDR", "KERNELPLUGINS_SHELL", "KERNELPLUGINS_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	db := filepath.Join(t.TempDir(), "app.db")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: none\n  console: false\nsqlite:\n  path: "+db+"\n"), 0o600))

	var out, errOut bytes.Buffer
	o := &rootOptions{streams: IOStreams{In: strings.NewReader(stdin), Out: &out, ErrOut: &errOut}}
	cmd := newRootCommand(o)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	require.NoError(t, o.Close())
	return out.String(), errOut.String(), err
}

func TestList(t *testing.T) {
	out, _, err := runCLI(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "PLUGIN")
	assert.Contains(t, out, "calculator")
	assert.Contains(t, out, "execute_python")
	assert.Contains(t, out, "google_search")
	assert.Contains(t, out, "sqlite")
	assert.NotContains(t, out, "generate_and_execute_code")
	assert.NotContains(t, out, "execute_command")
}

func TestListParams(t *testing.T) {
	out, _, err := runCLI(t, "", "list", "calculator", "--params")
	require.NoError(t, err)
	assert.Contains(t, out, "a:number b:number")
	assert.NotContains(t, out, "sqlite")

	_, _, err = runCLI(t, "", "list", "nope")
	assert.ErrorContains(t, err, `unknown plugin "nope"`)
}

func TestListSchemas(t *testing.T) {
	out, _, err := runCLI(t, "", "list", "calculator", "--schemas")
	require.NoError(t, err)
	var defs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	assert.Len(t, defs, 14)
}

func TestCall(t *testing.T) {
	out, _, err := runCLI(t, "", "call", "calculator", "add", `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "data": {"result": 5}}`, out)

	out, _, err = runCLI(t, `{"a": 1, "b": 0}`, "call", "calculator", "divide", "-")
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "division by zero")

	out, _, err = runCLI(t, "", "call", "calculator", "add", `{not json`)
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, `"kind": "validation"`)

	out, _, err = runCLI(t, "", "call", "ghost", "fn")
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, out, "ghost")
}

func TestCallSQLite(t *testing.T) {
	out, _, err := runCLI(t, "", "call", "sqlite", "list_tables")
	require.NoError(t, err)
	assert.Contains(t, out, `"tables": []`)
}

func TestGenerateRequiresModel(t *testing.T) {
	_, _, err := runCLI(t, "", "generate", "print hello")
	assert.ErrorContains(t, err, "code generation is disabled")
}

func TestExecAnalyze(t *testing.T) {
	out, _, err := runCLI(t, "import os\n", "exec", "--analyze", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"safe": false`)
}
