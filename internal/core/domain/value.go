package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type carried by a Value.
type Kind string

// Supported value kinds.
const (
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindVector Kind = "vector"
)

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindBool, KindNumber, KindString, KindVector:
		return true
	}
	return false
}

// Vec2 is a two-dimensional position or direction.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Scale returns v * f.
func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

// IsZero reports whether both components are zero.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Finite reports whether neither component is NaN or infinite.
func (v Vec2) Finite() bool {
	return finite(v.X) && finite(v.Y)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Value is the replicated payload of a field. It is comparable, so two
// values holding the same kind and content are equal under ==.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	v    Vec2
}

// BoolValue returns a bool Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NumberValue returns a number Value.
func NumberValue(n float64) Value { return Value{kind: KindNumber, n: n} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// VectorValue returns a vector Value.
func VectorValue(v Vec2) Value { return Value{kind: KindVector, v: v} }

// ZeroValue returns the zero value for a kind.
func ZeroValue(k Kind) Value {
	return Value{kind: k}
}

// Kind returns the kind of the value. The zero Value has an empty kind.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the uninitialised Value.
func (v Value) IsZero() bool { return v.kind == "" }

// Bool returns the bool payload.
func (v Value) Bool() bool { return v.b }

// Number returns the number payload.
func (v Value) Number() float64 { return v.n }

// Str returns the string payload.
func (v Value) Str() string { return v.s }

// Vector returns the vector payload.
func (v Value) Vector() Vec2 { return v.v }

// Finite reports whether every numeric component of v is finite.
func (v Value) Finite() bool {
	switch v.kind {
	case KindNumber:
		return finite(v.n)
	case KindVector:
		return v.v.Finite()
	}
	return true
}

// String renders the value for logs and CLI output.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return v.s
	case KindVector:
		return fmt.Sprintf("(%g, %g)", v.v.X, v.v.Y)
	default:
		return "<none>"
	}
}

type valueJSON struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch v.kind {
	case KindBool:
		raw, err = json.Marshal(v.b)
	case KindNumber:
		raw, err = json.Marshal(v.n)
	case KindString:
		raw, err = json.Marshal(v.s)
	case KindVector:
		raw, err = json.Marshal(v.v)
	default:
		return []byte("null"), nil
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.kind, Value: raw})
}

// UnmarshalJSON decodes the {"kind": ..., "value": ...} form.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var w valueJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Value{kind: w.Kind}
	var err error
	switch w.Kind {
	case KindBool:
		err = json.Unmarshal(w.Value, &out.b)
	case KindNumber:
		err = json.Unmarshal(w.Value, &out.n)
	case KindString:
		err = json.Unmarshal(w.Value, &out.s)
	case KindVector:
		err = json.Unmarshal(w.Value, &out.v)
	default:
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown value kind %q", w.Kind))
	}
	if err != nil {
		return ErrInvalidArgument.WithDetails("malformed " + string(w.Kind) + " value").WithCause(err)
	}
	*v = out
	return nil
}

// ParseValue parses the textual form of a value of the given kind.
// Vectors are written as "x,y".
func ParseValue(kind Kind, text string) (Value, error) {
	text = strings.TrimSpace(text)
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, ErrInvalidArgument.WithDetails("expected bool, got " + strconv.Quote(text))
		}
		return BoolValue(b), nil
	case KindNumber:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil || !finite(n) {
			return Value{}, ErrInvalidArgument.WithDetails("expected finite number, got " + strconv.Quote(text))
		}
		return NumberValue(n), nil
	case KindString:
		return StringValue(text), nil
	case KindVector:
		if text == "" {
			return VectorValue(Vec2{}), nil
		}
		parts := strings.Split(text, ",")
		if len(parts) != 2 {
			return Value{}, ErrInvalidArgument.WithDetails("expected vector as x,y, got " + strconv.Quote(text))
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		vec := Vec2{X: x, Y: y}
		if errX != nil || errY != nil || !vec.Finite() {
			return Value{}, ErrInvalidArgument.WithDetails("expected finite vector components, got " + strconv.Quote(text))
		}
		return VectorValue(vec), nil
	default:
		return Value{}, ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown value kind %q", kind))
	}
}
