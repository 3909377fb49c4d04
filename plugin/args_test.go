package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`{"query": "select 1", "limit": 5, "data": {"a": 1}, "args": ["ls", "-l"]}`)
	require.NoError(t, err)

	q, err := args.RequireString("query")
	require.NoError(t, err)
	assert.Equal(t, "select 1", q)

	n, err := args.Int("limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = args.Int("missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	m, err := args.RequireMap("data")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, m)

	list, ok, err := args.StringSlice("args")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"ls", "-l"}, list)

	empty, err := ParseArgs("  ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseArgs("not json")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestArgs_Validation(t *testing.T) {
	args := Args{"blank": "  ", "obj": map[string]any{}, "num": "abc", "frac": 1.5, "flag": "yes", "nested": `{"k":"v"}`}

	_, err := args.RequireString("blank")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = args.RequireString("absent")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = args.RequireString("obj")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = args.RequireMap("obj")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = args.RequireFloat("num")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = args.Int("frac", 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = args.Bool("flag", false)
	assert.ErrorIs(t, err, ErrValidation)

	m, err := args.RequireMap("nested")
	require.NoError(t, err)
	assert.Equal(t, "v", m["k"])
}

func TestArgs_Coercion(t *testing.T) {
	args := Args{"n": "2.5", "i": float64(3), "b": true, "s": 42.0}

	f, err := args.RequireFloat("n")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	s, err := args.RequireString("s")
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	b, err := args.Bool("b", false)
	require.NoError(t, err)
	assert.True(t, b)

	def, err := args.StringOr("absent", "public")
	require.NoError(t, err)
	assert.Equal(t, "public", def)
}
