package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/joblint/pkg/schema"
)

func TestNewCELEngine(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", e.Name())
}

func TestCELEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*CELEngine)(nil)
}

func TestCEL_Counts(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	data := map[string]any{"errors": int64(0), "warnings": int64(4)}

	t.Run("errors", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "errors > 0", data)
		require.NoError(t, err)
		assert.Equal(t, false, out)
	})

	t.Run("warnings", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "warnings >= 3", data)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	})
}

func TestCEL_MissingVariablesDefault(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), "errors + warnings == 0 && size(findings) == 0", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_FindingsAndJob(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	data := map[string]any{
		"findings": []any{
			map[string]any{"type": "warning", "text": "No environment is defined. Defaults will apply."},
		},
		"job": map[string]any{"name": "release"},
	}

	out, err := e.Evaluate(context.Background(),
		`job.name == "release" && findings.exists(f, f.text.contains("environment"))`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "errors >", nil)
	require.Error(t, err)

	var lintErr *schema.LintError
	require.ErrorAs(t, err, &lintErr)
	assert.Equal(t, schema.ErrCodeExpression, lintErr.Code)
	assert.Contains(t, lintErr.Message, "compile error")
}

func TestCEL_UndeclaredVariable(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	assert.Error(t, e.Check("steps > 0"))
}

func TestCEL_EmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestCEL_ConcurrentEvaluate(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), "errors > 5", map[string]any{"errors": n})
			assert.NoError(t, err)
			assert.Equal(t, n > 5, out)
		}(int64(i))
	}
	wg.Wait()
}
