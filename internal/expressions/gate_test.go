package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/joblint/pkg/schema"
)

func newGate(t *testing.T, policy string) *Gate {
	t.Helper()
	e, err := NewCELEngine()
	require.NoError(t, err)
	g, err := NewGate(e, policy)
	require.NoError(t, err)
	return g
}

func TestGate_DefaultPolicy(t *testing.T) {
	g := newGate(t, "")
	assert.Equal(t, DefaultGatePolicy, g.Policy())

	log := schema.NewFindingLog()
	log.Warning("w")

	failed, err := g.Fails(context.Background(), log, schema.Null())
	require.NoError(t, err)
	assert.False(t, failed)

	log.Error("e")
	failed, err = g.Fails(context.Background(), log, schema.Null())
	require.NoError(t, err)
	assert.True(t, failed)
}

func TestGate_PolicyOverJob(t *testing.T) {
	g := newGate(t, `warnings > 0 && job.name.startsWith("release")`)

	log := schema.NewFindingLog()
	log.Warning("w")

	failed, err := g.Fails(context.Background(), log, schema.FromAny(map[string]any{"name": "release-1"}))
	require.NoError(t, err)
	assert.True(t, failed)

	failed, err = g.Fails(context.Background(), log, schema.FromAny(map[string]any{"name": "nightly"}))
	require.NoError(t, err)
	assert.False(t, failed)
}

func TestGate_RejectsBadPolicy(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = NewGate(e, "errors >>> 1")
	assert.Error(t, err)
}

func TestGate_NonBoolResult(t *testing.T) {
	g := newGate(t, "errors + 1")

	_, err := g.Fails(context.Background(), schema.NewFindingLog(), schema.Null())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want bool")
}

func TestGateData(t *testing.T) {
	log := schema.NewFindingLog()
	log.Error("No sequence is defined.")

	data := GateData(log, schema.FromAny(map[string]any{"name": "x"}))
	assert.Equal(t, int64(1), data["errors"])
	assert.Equal(t, int64(0), data["warnings"])
	assert.Equal(t, []any{map[string]any{"type": "error", "text": "No sequence is defined."}}, data["findings"])
	assert.Equal(t, map[string]any{"name": "x"}, data["job"])

	_, hasJob := GateData(log, schema.Null())["job"]
	assert.False(t, hasJob)
}
