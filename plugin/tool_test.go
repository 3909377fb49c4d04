package plugin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Tools(t *testing.T) {
	reg, _ := newTestRegistry(t)

	ts := reg.Tools()
	require.Len(t, ts, 3)
	assert.Equal(t, "fake-broken", ts[0].Name())
	assert.Equal(t, "fake-echo", ts[1].Name())
	assert.Contains(t, ts[1].Description(), "text (string, required)")

	out, err := ts[1].Call(context.Background(), `{"text": "hi"}`)
	require.NoError(t, err)

	var res Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Data)
}

func TestTool_CallWithRawInput(t *testing.T) {
	reg, _ := newTestRegistry(t)
	echo := reg.Tools()[1]

	out, err := echo.Call(context.Background(), "plain words")
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true, "data": "plain words"}`, out)
}

func TestTool_CallBadInput(t *testing.T) {
	reg, _ := newTestRegistry(t)
	broken := reg.Tools()[0]

	out, err := broken.Call(context.Background(), "{not json")
	require.NoError(t, err)

	var res Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.Equal(t, KindValidation, res.Kind)
}

func TestRegistry_Definitions(t *testing.T) {
	reg, _ := newTestRegistry(t)

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "function", defs[1].Type)
	assert.Equal(t, "fake-echo", defs[1].Function.Name)
	schema := defs[1].Function.Parameters.(map[string]any)
	assert.Equal(t, []string{"text"}, schema["required"])
}
