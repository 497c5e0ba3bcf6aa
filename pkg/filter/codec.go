package filter

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/mitchellh/mapstructure"
)

// Decode reads the JSON form of a filter:
//
//	{"type": "and", "filters": [
//	    {"type": "string", "field": "name", "operation": "startsWith", "value": "a"},
//	    {"type": "date", "field": "createdAt", "operation": "after", "value": "2024-01-01T00:00:00Z"}
//	]}
//
// Unknown filter types are rejected. Operations and value kinds are not
// checked here; use Validate, or let evaluation report them.
func Decode(data []byte) (Filter, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, invalidFilter("malformed filter JSON: %v", err)
	}
	return DecodeValue(raw)
}

// DecodeYAML reads the YAML equivalent of the JSON form.
func DecodeYAML(data []byte) (Filter, error) {
	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, invalidFilter("malformed filter YAML: %v", err)
	}
	return Decode(js)
}

// DecodeValue builds a filter from an already unmarshalled JSON value.
func DecodeValue(raw any) (Filter, error) {
	return decodeNode(raw, "filter")
}

func decodeNode(raw any, path string) (Filter, error) {
	node, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidFilter("%s: expected an object, got %T", path, raw)
	}

	typ, _ := node["type"].(string)
	switch Type(typ) {
	case TypeOr, TypeAnd:
		subs, err := decodeChildren(node, path)
		if err != nil {
			return nil, err
		}
		if Type(typ) == TypeOr {
			return &OrFilter{Filters: subs}, nil
		}
		return &AndFilter{Filters: subs}, nil
	case TypeString, TypeNumber, TypeBoolean, TypeDate:
		var l leaf
		if err := mapstructure.Decode(node, &l); err != nil {
			return nil, invalidFilter("%s: %v", path, err)
		}
		decoded, _ := NewLeaf(Type(typ), l.Field, l.Operation, l.Value)
		return decoded, nil
	default:
		return nil, invalidFilter("%s: unknown filter type %q", path, typ)
	}
}

func decodeChildren(node map[string]any, path string) ([]Filter, error) {
	rawChildren, ok := node["filters"]
	if !ok {
		return nil, invalidFilter("%s: filters is required", path)
	}
	list, ok := rawChildren.([]any)
	if !ok {
		return nil, invalidFilter("%s: filters must be an array, got %T", path, rawChildren)
	}

	subs := make([]Filter, 0, len(list))
	for i, child := range list {
		sub, err := decodeNode(child, fmt.Sprintf("%s.filters[%d]", path, i))
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Encode renders f in the JSON form accepted by Decode.
func Encode(f Filter) ([]byte, error) {
	node, err := encodeNode(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

func encodeNode(f Filter) (map[string]any, error) {
	if isNilFilter(f) {
		return nil, invalidFilter("cannot encode nil %s filter", f.Type())
	}

	switch f := f.(type) {
	case *OrFilter:
		return encodeCombinator(TypeOr, f.Filters)
	case *AndFilter:
		return encodeCombinator(TypeAnd, f.Filters)
	case Leaf:
		return map[string]any{
			"type":      f.Type(),
			"field":     f.Target(),
			"operation": f.Op(),
			"value":     f.Operand(),
		}, nil
	default:
		return nil, invalidFilter("cannot encode filter %T", f)
	}
}

func encodeCombinator(t Type, filters []Filter) (map[string]any, error) {
	subs := make([]map[string]any, 0, len(filters))
	for _, sub := range filters {
		node, err := encodeNode(sub)
		if err != nil {
			return nil, err
		}
		subs = append(subs, node)
	}
	return map[string]any{"type": t, "filters": subs}, nil
}

// Definition carries a Filter through JSON bodies and JSONB columns.
type Definition struct {
	Filter Filter
}

func (d Definition) MarshalJSON() ([]byte, error) {
	if d.Filter == nil {
		return []byte("null"), nil
	}
	return Encode(d.Filter)
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		d.Filter = nil
		return nil
	}
	f, err := Decode(data)
	if err != nil {
		return err
	}
	d.Filter = f
	return nil
}

func (d Definition) Value() (driver.Value, error) {
	return d.MarshalJSON()
}

func (d *Definition) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Filter = nil
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into filter definition", src)
	}
}
