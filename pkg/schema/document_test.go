package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_Shapes(t *testing.T) {
	v := FromAny(map[string]any{
		"name":    "build",
		"retries": 3,
		"ratio":   0.5,
		"enabled": true,
		"steps":   []any{"compile", nil},
		"env":     map[any]any{1: "one", "two": 2},
	})

	require.Equal(t, KindMapping, v.Kind())
	assert.True(t, v.Has("name"))
	assert.False(t, v.Has("missing"))

	name, ok := v.Get("name").Str()
	require.True(t, ok)
	assert.Equal(t, "build", name)

	assert.Equal(t, KindNumber, v.Get("retries").Kind())
	assert.Equal(t, int64(3), v.Get("retries").Interface())
	assert.Equal(t, 0.5, v.Get("ratio").Interface())
	assert.Equal(t, KindBool, v.Get("enabled").Kind())

	steps, ok := v.Get("steps").Sequence()
	require.True(t, ok)
	require.Len(t, steps, 2)
	assert.True(t, steps[1].IsNull())

	env := v.Get("env")
	assert.True(t, env.Has("1"), "non-string keys are stringified")
	assert.True(t, env.Has("two"))
}

func TestValue_AccessorsOnWrongKind(t *testing.T) {
	s := String("x")

	_, ok := s.Mapping()
	assert.False(t, ok)
	_, ok = s.Sequence()
	assert.False(t, ok)
	assert.False(t, s.Has("x"))
	assert.True(t, s.Get("x").IsNull())
	assert.Nil(t, s.Keys())

	_, ok = Sequence().Str()
	assert.False(t, ok)
}

func TestValue_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"null", Null(), true},
		{"false", Bool(false), false},
		{"zero", Number("0"), false},
		{"empty string", String(""), true},
		{"string", String("a"), false},
		{"empty sequence", Sequence(), true},
		{"sequence", Sequence(String("a")), false},
		{"empty mapping", Mapping(nil), true},
		{"mapping", Mapping(map[string]Value{"a": Null()}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.IsEmpty())
		})
	}
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "build", String("build").String())
	assert.Equal(t, "42", Number("42").String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "", Null().String())
	assert.Equal(t, `["a",1]`, Sequence(String("a"), Number("1")).String())
	assert.Equal(t, `{"k":"v"}`, Mapping(map[string]Value{"k": String("v")}).String())
}

func TestValue_JSONRoundTrip(t *testing.T) {
	src := `{"name":"x","sequence":[{"stage":"build","retries":10000000000000000000}],"stages":null}`

	var v Value
	require.NoError(t, json.Unmarshal([]byte(src), &v))
	assert.Equal(t, KindMapping, v.Kind())
	assert.True(t, v.Get("stages").IsNull())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, src, string(out))
}

func TestValue_Keys(t *testing.T) {
	v := Mapping(map[string]Value{"b": Null(), "a": Null()})
	assert.Equal(t, []string{"a", "b"}, v.Keys())
}
