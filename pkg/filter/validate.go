package filter

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order when a string has to be read as a date.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDate reads s as an instant. Strings without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}

func checkString(field string, v any, kind Kind, source string) (string, error) {
	if kind != KindString {
		return "", typeMismatch(TypeString, field, v, kind, source)
	}
	return v.(string), nil
}

func checkNumber(field string, v any, kind Kind, source string) (float64, error) {
	if kind != KindNumber {
		return 0, typeMismatch(TypeNumber, field, v, kind, source)
	}
	n, ok := toFloat(v)
	if !ok {
		return 0, typeMismatch(TypeNumber, field, v, KindUnknown, source)
	}
	return n, nil
}

func checkBoolean(field string, v any, kind Kind, source string) (bool, error) {
	if kind != KindBoolean {
		return false, typeMismatch(TypeBoolean, field, v, kind, source)
	}
	return v.(bool), nil
}

// coerceDate accepts a time.Time as is and parses strings. The caller's value
// is never replaced; the coerced instant only lives for one comparison.
func coerceDate(field string, v any, kind Kind, source string) (time.Time, error) {
	switch kind {
	case KindDate:
		return v.(time.Time), nil
	case KindString:
		t, err := ParseDate(v.(string))
		if err != nil {
			return time.Time{}, invalidDate(field, v, source, err)
		}
		return t, nil
	default:
		return time.Time{}, typeMismatch(TypeDate, field, v, kind, source)
	}
}

// Validate checks a filter tree without a message: every node is a known
// variant, every leaf operation exists for its type and every comparison value
// has the kind its leaf expects.
func Validate(f Filter) error {
	return validate(f, "filter")
}

func validate(f Filter, path string) error {
	if isNilFilter(f) {
		return invalidFilter("%s: %s filter is nil", path, f.Type())
	}

	switch f := f.(type) {
	case nil:
		return invalidFilter("%s: filter is nil", path)
	case *OrFilter:
		return validateAll(f.Filters, path)
	case *AndFilter:
		return validateAll(f.Filters, path)
	case Leaf:
		if f.Target() == "" {
			return invalidFilter("%s: field is required", path)
		}
		if !hasOperation(f.Type(), f.Op()) {
			return unknownOperation(f.Type(), f.Target(), f.Op())
		}
		return validateOperand(f)
	default:
		return invalidFilter("%s: unsupported filter %T", path, f)
	}
}

func validateAll(filters []Filter, path string) error {
	for i, sub := range filters {
		if err := validate(sub, fmt.Sprintf("%s.filters[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateOperand(l Leaf) error {
	v := l.Operand()
	kind := KindOf(v)
	var err error
	switch l.Type() {
	case TypeString:
		_, err = checkString(l.Target(), v, kind, sourceFilter)
	case TypeNumber:
		_, err = checkNumber(l.Target(), v, kind, sourceFilter)
	case TypeBoolean:
		_, err = checkBoolean(l.Target(), v, kind, sourceFilter)
	case TypeDate:
		_, err = coerceDate(l.Target(), v, kind, sourceFilter)
	}
	return err
}
