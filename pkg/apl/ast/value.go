package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType represents the type of a value in an APL policy.
// APL has a strong type system with no automatic coercion.
type ValueType string

const (
	ValueTypeString  ValueType = "string"
	ValueTypeNumber  ValueType = "number"
	ValueTypeBoolean ValueType = "boolean"
	ValueTypeList    ValueType = "list"
)

// Value is a tagged variant holding a single APL value.
// Exactly one of the payload fields is meaningful, selected by Type.
// Request context values are converted into this representation before
// evaluation so the evaluator can match exhaustively on Type instead of
// using runtime reflection.
type Value struct {
	Type ValueType
	Str  string
	Num  float64
	Bool bool
	List []Value
}

// StringValue constructs a string Value.
func StringValue(s string) Value {
	return Value{Type: ValueTypeString, Str: s}
}

// NumberValue constructs a number Value.
func NumberValue(n float64) Value {
	return Value{Type: ValueTypeNumber, Num: n}
}

// BoolValue constructs a boolean Value.
func BoolValue(b bool) Value {
	return Value{Type: ValueTypeBoolean, Bool: b}
}

// ListValue constructs a list Value.
func ListValue(elems ...Value) Value {
	return Value{Type: ValueTypeList, List: elems}
}

// FromGo converts a decoded JSON/YAML value into a Value.
// Supported inputs are string, bool, all Go numeric types, and slices thereof.
func FromGo(v interface{}) (Value, error) {
	switch val := v.(type) {
	case string:
		return StringValue(val), nil
	case bool:
		return BoolValue(val), nil
	case float64:
		return NumberValue(val), nil
	case float32:
		return NumberValue(float64(val)), nil
	case int:
		return NumberValue(float64(val)), nil
	case int32:
		return NumberValue(float64(val)), nil
	case int64:
		return NumberValue(float64(val)), nil
	case uint:
		return NumberValue(float64(val)), nil
	case uint32:
		return NumberValue(float64(val)), nil
	case uint64:
		return NumberValue(float64(val)), nil
	case []interface{}:
		list := make([]Value, 0, len(val))
		for _, elem := range val {
			converted, err := FromGo(elem)
			if err != nil {
				return Value{}, err
			}
			list = append(list, converted)
		}
		return ListValue(list...), nil
	case Value:
		return val, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// Interface converts the value back to its plain Go form, the inverse of
// FromGo. Used when values cross a serialization boundary (audit records).
func (v Value) Interface() interface{} {
	switch v.Type {
	case ValueTypeString:
		return v.Str
	case ValueTypeNumber:
		return v.Num
	case ValueTypeBoolean:
		return v.Bool
	case ValueTypeList:
		out := make([]interface{}, len(v.List))
		for i, e := range v.List {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether two values are equal.
// Values of different types are never equal (no coercion).
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueTypeString:
		return v.Str == other.Str
	case ValueTypeNumber:
		return v.Num == other.Num
	case ValueTypeBoolean:
		return v.Bool == other.Bool
	case ValueTypeList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	default:
		// Zero values carry no payload. Non-literal expression nodes embed
		// them, so two zero values must compare equal.
		return true
	}
}

// String renders the value as a canonical APL literal.
// Strings are quoted, numbers use the shortest exact representation,
// lists render as bracketed comma-separated literals.
func (v Value) String() string {
	switch v.Type {
	case ValueTypeString:
		return strconv.Quote(v.Str)
	case ValueTypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueTypeBoolean:
		return strconv.FormatBool(v.Bool)
	case ValueTypeList:
		elems := make([]string, len(v.List))
		for i, e := range v.List {
			elems[i] = e.String()
		}
		return "[" + strings.Join(elems, ", ") + "]"
	default:
		return fmt.Sprintf("<invalid value type %q>", v.Type)
	}
}
