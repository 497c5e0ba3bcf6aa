package filter

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is a record under evaluation: field name to string, number, bool,
// time.Time or a nested mapping. Fields are addressed by flat key only.
type Message map[string]any

// Kind is the runtime kind of a stored value.
type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
	KindBoolean
	KindDate
	KindNested
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "undefined"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindNested:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf classifies v. All Go numeric types and json.Number count as numbers;
// a nil value is treated like an absent field.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindMissing
	case string:
		return KindString
	case bool:
		return KindBoolean
	case time.Time:
		return KindDate
	case Message, map[string]any:
		return KindNested
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	default:
		return KindUnknown
	}
}

// Lookup returns the value stored under field and its kind.
func (m Message) Lookup(field string) (any, Kind) {
	v, ok := m[field]
	if !ok {
		return nil, KindMissing
	}
	return v, KindOf(v)
}

// toFloat converts a value already classified as KindNumber.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// describe renders a value for diagnostics.
func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "undefined"
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}
