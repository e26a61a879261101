package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingLog_Empty(t *testing.T) {
	l := NewFindingLog()
	assert.Equal(t, 0, l.Warnings())
	assert.Equal(t, 0, l.Errors())
	assert.Empty(t, l.Findings())
	assert.Equal(t, 0, l.Len())
}

func TestFindingLog_KeepsInsertionOrderAndCounts(t *testing.T) {
	l := NewFindingLog()
	l.Error("first")
	l.Warning("second")
	l.Error("third")

	assert.Equal(t, 1, l.Warnings())
	assert.Equal(t, 2, l.Errors())
	assert.Equal(t, []Finding{
		{Kind: FindingError, Text: "first"},
		{Kind: FindingWarning, Text: "second"},
		{Kind: FindingError, Text: "third"},
	}, l.Findings())
}

func TestFindingLog_FindingsIsACopy(t *testing.T) {
	l := NewFindingLog()
	l.Warning("w")

	got := l.Findings()
	got[0].Text = "mutated"

	assert.Equal(t, "w", l.Findings()[0].Text)
}

func TestFindingLog_ZeroValueUsable(t *testing.T) {
	var l FindingLog
	l.Warning("w")
	assert.Equal(t, 1, l.Warnings())
}

func TestFindingLog_MarshalJSON(t *testing.T) {
	l := NewFindingLog()
	l.Warning("No environment is defined. Defaults will apply.")
	l.Error("No sequence is defined.")

	data, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"messages": [
			{"type": "warning", "text": "No environment is defined. Defaults will apply."},
			{"type": "error", "text": "No sequence is defined."}
		],
		"warnings": 1,
		"errors": 1
	}`, string(data))
}

func TestFindingKind_Text(t *testing.T) {
	var k FindingKind
	require.NoError(t, k.UnmarshalText([]byte("error")))
	assert.Equal(t, FindingError, k)
	assert.Error(t, k.UnmarshalText([]byte("fatal")))
	assert.Equal(t, "kind(7)", FindingKind(7).String())
}
