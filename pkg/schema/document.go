package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind tags the shape held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a generic job document node as produced by a YAML or JSON decoder.
// The zero Value is null. Values are treated as immutable once built.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	seq  []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a number in its textual form.
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// Sequence wraps an ordered list of values.
func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, seq: items}
}

// Mapping wraps a keyed mapping.
func Mapping(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMapping, m: m}
}

// FromAny converts a decoded Go value into a Value. Mapping keys that are not
// strings are stringified, so symbol/string/number keys all collapse to the
// same lookup key.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		return Number(t)
	case int:
		return Number(json.Number(strconv.FormatInt(int64(t), 10)))
	case int32:
		return Number(json.Number(strconv.FormatInt(int64(t), 10)))
	case int64:
		return Number(json.Number(strconv.FormatInt(t, 10)))
	case uint:
		return Number(json.Number(strconv.FormatUint(uint64(t), 10)))
	case uint64:
		return Number(json.Number(strconv.FormatUint(t, 10)))
	case float32:
		return Number(json.Number(strconv.FormatFloat(float64(t), 'g', -1, 32)))
	case float64:
		return Number(json.Number(strconv.FormatFloat(t, 'g', -1, 64)))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Sequence(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return Sequence(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Mapping(m)
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = FromAny(item)
		}
		return Mapping(m)
	default:
		return String(fmt.Sprint(t))
	}
}

// Kind reports the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Mapping returns the entries of a mapping value.
func (v Value) Mapping() (map[string]Value, bool) {
	if v.kind != KindMapping {
		return nil, false
	}
	return v.m, true
}

// Sequence returns the items of a sequence value.
func (v Value) Sequence() ([]Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	return v.seq, true
}

// Str returns the string held by a string value.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Has reports whether a mapping value declares key. Non-mappings declare nothing.
func (v Value) Has(key string) bool {
	if v.kind != KindMapping {
		return false
	}
	_, ok := v.m[key]
	return ok
}

// Get returns the value stored under key, or null.
func (v Value) Get(key string) Value {
	if v.kind != KindMapping {
		return Null()
	}
	return v.m[key]
}

// Len is the number of items, entries or bytes. Scalars have no length.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.str)
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.m)
	default:
		return 0
	}
}

// IsEmpty reports whether the value is null or a zero-length string,
// sequence or mapping. Booleans and numbers are never empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindBool, KindNumber:
		return false
	default:
		return v.Len() == 0
	}
}

// String renders the value the way it is interpolated into messages:
// strings verbatim, scalars in their literal form, containers as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return v.num.String()
	case KindString:
		return v.str
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("<%s>", v.kind)
		}
		return string(b)
	}
}

// Keys returns the mapping keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts the value back to plain Go data. Integral numbers become
// int64, other numbers float64.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if i, err := v.num.Int64(); err == nil {
			return i
		}
		if f, err := v.num.Float64(); err == nil && !math.IsInf(f, 0) {
			return f
		}
		return v.num.String()
	case KindString:
		return v.str
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Interface()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindSequence:
		return json.Marshal(v.seq)
	case KindMapping:
		return json.Marshal(v.m)
	default:
		return json.Marshal(v.Interface())
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := unmarshalNumbers(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

func unmarshalNumbers(data []byte, out *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}
