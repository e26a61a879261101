package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/joblint/internal/expressions"
	"github.com/rendis/joblint/pkg/schema"
)

func sampleLog() *schema.FindingLog {
	log := schema.NewFindingLog()
	log.Error("The Job does not have a name.")
	log.Warning("No version is defined for the Job. The default of 1.0.0 will be used.")
	log.Warning("No environment is defined. Defaults will apply.")
	return log
}

func TestNew(t *testing.T) {
	r := New("build.yml", "run-1", sampleLog())
	assert.Equal(t, "build.yml", r.Source)
	assert.Equal(t, "run-1", r.RunID)
	assert.Len(t, r.Messages, 3)
	assert.Equal(t, 1, r.Errors)
	assert.Equal(t, 2, r.Warnings)
	assert.False(t, r.Failed)

	empty := New("-", "", schema.NewFindingLog())
	assert.NotNil(t, empty.Messages)
	assert.Empty(t, empty.Messages)
}

func TestFilter(t *testing.T) {
	f, err := expressions.NewFindingFilter(expressions.NewExprEngine(), `kind == "error"`)
	require.NoError(t, err)

	r := New("build.yml", "", sampleLog())
	require.NoError(t, r.Filter(context.Background(), f))

	require.Len(t, r.Messages, 1)
	assert.Equal(t, schema.FindingError, r.Messages[0].Kind)
	assert.Equal(t, 2, r.Hidden)
	assert.Equal(t, 2, r.Warnings, "counters keep the whole log")
	assert.Equal(t, "1 error, 2 warnings (2 hidden)", r.Summary())
}

func TestFilter_Nil(t *testing.T) {
	r := New("build.yml", "", sampleLog())
	require.NoError(t, r.Filter(context.Background(), nil))
	assert.Len(t, r.Messages, 3)
	assert.Zero(t, r.Hidden)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "0 errors, 0 warnings", New("-", "", schema.NewFindingLog()).Summary())
	assert.Equal(t, "1 error, 2 warnings", New("-", "", sampleLog()).Summary())
}

func TestWriteJSON(t *testing.T) {
	r := New("build.yml", "run-1", sampleLog())
	r.Gate("errors > 0", true)
	r.Schema = &schema.ValidationResult{}
	r.Schema.AddError("/name", schema.ErrCodeValidation, "missing property 'name'")

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	got := out[0]
	assert.Equal(t, "build.yml", got["source"])
	assert.Equal(t, true, got["failed"])
	assert.Equal(t, "errors > 0", got["policy"])
	assert.EqualValues(t, 1, got["errors"])
	assert.EqualValues(t, 2, got["warnings"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 3)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "error", first["type"])
	assert.Equal(t, "The Job does not have a name.", first["text"])

	sch := got["schema"].(map[string]any)
	assert.Len(t, sch["errors"], 1)
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriteText(t *testing.T) {
	ok := New("ok.yml", "", schema.NewFindingLog())
	bad := New("bad.yml", "", sampleLog())
	bad.Gate("errors > 0", true)
	bad.Schema = &schema.ValidationResult{}
	bad.Schema.AddError("/", schema.ErrCodeValidation, "missing property 'name'")
	bad.Schema.AddWarning("/sequence", schema.ErrCodeCycle, "sequence branches form a cycle involving: a, b")

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, TextOptions{}, ok, bad))

	out := buf.String()
	assert.Contains(t, out, "ok.yml\n  ok 0 errors, 0 warnings\n")
	assert.Contains(t, out, "bad.yml\n")
	assert.Contains(t, out, "  error    The Job does not have a name.\n")
	assert.Contains(t, out, "  warning  No environment is defined. Defaults will apply.\n")
	assert.Contains(t, out, "  schema   /: missing property 'name'\n")
	assert.Contains(t, out, "  advice   /sequence: sequence branches form a cycle involving: a, b\n")
	assert.Contains(t, out, "  FAILED 1 error, 2 warnings\n")
}

func TestWriteText_ColorToBufferDegradesToPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, TextOptions{Color: true}, New("bad.yml", "", sampleLog())))
	assert.Contains(t, buf.String(), "The Job does not have a name.")
	assert.NotContains(t, buf.String(), "\x1b[")
}
