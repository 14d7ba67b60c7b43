package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
)

// Kind is the variant tag of a metadata Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// String returns the kind name.
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
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a JSON-like metadata value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

// Metadata is free-form chunk metadata.
type Metadata map[string]Value

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NumberValue wraps a number.
func NumberValue(n float64) Value { return Value{kind: KindNumber, n: n} }

// IntValue wraps an int as a number.
func IntValue(n int) Value { return NumberValue(float64(n)) }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ListValue wraps an ordered list.
func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// MapValue wraps a mapping. The map is copied.
func MapValue(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the bool payload and whether v is a bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Number returns the number payload and whether v is a number.
func (v Value) Number() (float64, bool) { return v.n, v.kind == KindNumber }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// List returns a copy of the list payload and whether v is a list.
func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return slices.Clone(v.list), true
}

// Map returns a copy of the map payload and whether v is a map.
func (v Value) Map() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return maps.Clone(v.m), true
}

// Validate rejects numbers that have no JSON encoding (NaN, ±Inf),
// including ones nested in lists and maps.
func (v Value) Validate() error {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return fmt.Errorf("%w: non-finite number %v", ErrInvalidInput, v.n)
		}
	case KindList:
		for i, item := range v.list {
			if err := item.Validate(); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case KindMap:
		for k, item := range v.m {
			if err := item.Validate(); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, x := range v.m {
			y, ok := o.m[k]
			if !ok || !x.Equal(y) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v to plain Go values (nil, bool, float64, string,
// []any, map[string]any).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// ValueOf converts plain Go values into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %q", ErrInvalidInput, t)
		}
		return NumberValue(n), nil
	case string:
		return StringValue(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Value{kind: KindMap, m: m}, nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported metadata value %T", ErrInvalidInput, x)
	}
}

// MarshalJSON encodes v as plain JSON.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Validate checks every value in m.
func (m Metadata) Validate() error {
	for _, k := range m.Keys() {
		if err := m[k].Validate(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality.
func (m Metadata) Equal(o Metadata) bool {
	return MapValue(m).Equal(MapValue(o))
}
