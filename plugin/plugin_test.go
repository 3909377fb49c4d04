package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallnest/kernelplugins/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	name   string
	closed bool
}

func (p *fakePlugin) Name() string        { return p.name }
func (p *fakePlugin) Description() string { return "test plugin" }
func (p *fakePlugin) Close() error {
	p.closed = true
	return nil
}

func (p *fakePlugin) Functions() []Function {
	return []Function{
		{
			Name:        "echo",
			Description: "Echo the text back.",
			Parameters:  []Parameter{{Name: "text", Type: "string", Required: true}},
			Handler: func(ctx context.Context, args Args) Result {
				s, err := args.RequireString("text")
				if err != nil {
					return Fail(err)
				}
				return OK(s)
			},
		},
		{
			Name: "explode",
			Handler: func(ctx context.Context, args Args) Result {
				panic("kaboom")
			},
		},
		{
			Name: "broken",
			Handler: func(ctx context.Context, args Args) Result {
				return Fail(External("dial", errors.New("connection refused")))
			},
		},
	}
}

func newTestRegistry(t *testing.T) (*Registry, *fakePlugin) {
	t.Helper()
	reg := NewRegistry(WithRegistryLogger(&log.NoOpLogger{}))
	p := &fakePlugin{name: "fake"}
	require.NoError(t, reg.Register(p))
	return reg, p
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	reg, _ := newTestRegistry(t)

	err := reg.Register(&fakePlugin{name: "fake"})
	assert.Error(t, err)
	assert.Error(t, reg.Register(&fakePlugin{}))

	require.NoError(t, reg.Register(&fakePlugin{name: "another"}))
	assert.Equal(t, []string{"another", "fake"}, reg.Names())
}

func TestRegistry_Invoke(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	before := testutil.ToFloat64(invocations.WithLabelValues("fake", "echo", "success"))
	res := reg.Invoke(ctx, "fake", "echo", Args{"text": "hello"})
	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Data)
	assert.Equal(t, before+1, testutil.ToFloat64(invocations.WithLabelValues("fake", "echo", "success")))

	res = reg.Invoke(ctx, "fake", "echo", Args{})
	assert.False(t, res.Success)
	assert.Equal(t, KindValidation, res.Kind)
	assert.Contains(t, res.Error, "text is required")

	res = reg.Invoke(ctx, "missing", "echo", nil)
	assert.False(t, res.Success)
	assert.Equal(t, KindValidation, res.Kind)

	res = reg.Invoke(ctx, "fake", "nope", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `no function "nope"`)
}

func TestRegistry_InvokeRecoversPanics(t *testing.T) {
	reg, _ := newTestRegistry(t)

	before := testutil.ToFloat64(invocations.WithLabelValues("fake", "explode", "panic"))
	res := reg.Invoke(context.Background(), "fake", "explode", nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, before+1, testutil.ToFloat64(invocations.WithLabelValues("fake", "explode", "panic")))
}

func TestRegistry_ExternalFailure(t *testing.T) {
	reg, _ := newTestRegistry(t)

	res := reg.Invoke(context.Background(), "fake", "broken", nil)
	assert.False(t, res.Success)
	assert.Equal(t, KindExternalCall, res.Kind)
	assert.Equal(t, "external call failed: dial: connection refused", res.Error)
}

func TestRegistry_Close(t *testing.T) {
	reg, p := newTestRegistry(t)
	require.NoError(t, reg.Close())
	assert.True(t, p.closed)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindValidation, KindOf(Missing("query")))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("run: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("%w after 1s", ErrTimeout)))
	assert.Equal(t, KindGeneration, KindOf(fmt.Errorf("%w: no code", ErrGeneration)))
	assert.Equal(t, KindExternalCall, KindOf(errors.New("anything else")))
}

func TestResult_JSON(t *testing.T) {
	var ok map[string]any
	require.NoError(t, json.Unmarshal([]byte(OK(map[string]int{"n": 1}).JSON()), &ok))
	assert.Equal(t, true, ok["success"])
	assert.NotContains(t, ok, "error")

	var failed map[string]any
	require.NoError(t, json.Unmarshal([]byte(Fail(Missing("table")).JSON()), &failed))
	assert.Equal(t, false, failed["success"])
	assert.Equal(t, "invalid argument: table is required", failed["error"])
	assert.Equal(t, "validation", failed["kind"])

	assert.Equal(t, KindExternalCall, Fail(nil).Kind)
}

func TestFunction_Schema(t *testing.T) {
	fn := Function{Parameters: []Parameter{
		{Name: "table", Type: "string", Required: true, Description: "table name"},
		{Name: "limit", Type: "integer"},
	}}
	schema := fn.Schema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"table"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "table name"}, props["table"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["limit"])
}
