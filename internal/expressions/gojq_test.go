package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoJQEngine(t *testing.T) {
	e := NewGoJQEngine()
	assert.Equal(t, "jq", e.Name())
}

func TestGoJQEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*GoJQEngine)(nil)
}

func TestGoJQ_Evaluate(t *testing.T) {
	e := NewGoJQEngine()
	data := map[string]any{
		"jobs": []any{
			map[string]any{"name": "build", "retries": int64(2)},
			map[string]any{"name": "deploy"},
		},
	}

	t.Run("single output", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), ".jobs[0].name", data)
		require.NoError(t, err)
		assert.Equal(t, "build", out)
	})

	t.Run("int64 is normalized", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), ".jobs[0].retries + 1", data)
		require.NoError(t, err)
		assert.EqualValues(t, 3, out)
	})

	t.Run("multiple outputs", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), ".jobs[].name", data)
		require.NoError(t, err)
		assert.Equal(t, []any{"build", "deploy"}, out)
	})

	t.Run("no output", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "empty", data)
		require.NoError(t, err)
		assert.Nil(t, out)
	})
}

func TestGoJQ_EvaluateAllOnNonObject(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.EvaluateAll(context.Background(), ".[1]", []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"b"}, out)
}

func TestGoJQ_Errors(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.EvaluateAll(context.Background(), "", nil)
	assert.Error(t, err)

	_, err = e.EvaluateAll(context.Background(), ".[", nil)
	assert.ErrorContains(t, err, "parse error")

	_, err = e.EvaluateAll(context.Background(), ".a.b", map[string]any{"a": "str"})
	assert.ErrorContains(t, err, "evaluation failed")
}

func TestGoJQ_NoEnvironment(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.EvaluateAll(context.Background(), "$ENV | length", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 0, out[0])
}
