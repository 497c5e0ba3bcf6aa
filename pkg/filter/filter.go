// Package filter evaluates declarative filter expressions against loosely
// typed messages.
//
// A Filter is either a leaf comparison on one message field (string, number,
// boolean or date) or an AND/OR combinator over further filters. Messages and
// filters are read-only during evaluation; Messages returns the matching
// subsequence of its input under a strict or lenient error policy.
package filter

// Type discriminates the filter variants. It is the "type" tag of the JSON form.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeOr      Type = "or"
	TypeAnd     Type = "and"
)

// Operation names a comparison. The valid set depends on the leaf type.
type Operation string

const (
	OpEq         Operation = "eq"
	OpStartsWith Operation = "startsWith"
	OpEndsWith   Operation = "endsWith"
	OpContains   Operation = "contains"
	OpGt         Operation = "gt"
	OpLt         Operation = "lt"
	OpGte        Operation = "gte"
	OpLte        Operation = "lte"
	OpAfter      Operation = "after"
	OpBefore     Operation = "before"
)

// Filter is the closed set of filter variants: *StringFilter, *NumberFilter,
// *BooleanFilter, *DateFilter, *OrFilter and *AndFilter.
type Filter interface {
	Type() Type
	isFilter()
}

// Leaf is implemented by the four comparison filters.
type Leaf interface {
	Filter
	Target() string
	Op() Operation
	Operand() any
}

type leaf struct {
	Field     string    `json:"field" mapstructure:"field"`
	Operation Operation `json:"operation" mapstructure:"operation"`
	// Value is checked against the leaf type at evaluation time, the same way
	// the message field is. Filters decoded from external input may carry any
	// JSON value here.
	Value any `json:"value" mapstructure:"value"`
}

func (l *leaf) Target() string { return l.Field }
func (l *leaf) Op() Operation { return l.Operation }
func (l *leaf) Operand() any { return l.Value }
func (*leaf) isFilter() {}

type StringFilter struct{ leaf }

type NumberFilter struct{ leaf }

type BooleanFilter struct{ leaf }

// DateFilter compares instants. Value may be a time.Time or a date string.
type DateFilter struct{ leaf }

func (*StringFilter) Type() Type { return TypeString }
func (*NumberFilter) Type() Type { return TypeNumber }
func (*BooleanFilter) Type() Type { return TypeBoolean }
func (*DateFilter) Type() Type { return TypeDate }

// OrFilter matches when any sub-filter matches. An empty OrFilter matches nothing.
type OrFilter struct {
	Filters []Filter
}

// AndFilter matches when every sub-filter matches. An empty AndFilter matches everything.
type AndFilter struct {
	Filters []Filter
}

func (*OrFilter) Type() Type { return TypeOr }
func (*AndFilter) Type() Type { return TypeAnd }
func (*OrFilter) isFilter() {}
func (*AndFilter) isFilter() {}

// isNilFilter reports whether f is a typed nil pointer. The leaf accessors
// dereference their receiver.
func isNilFilter(f Filter) bool {
	switch f := f.(type) {
	case *StringFilter:
		return f == nil
	case *NumberFilter:
		return f == nil
	case *BooleanFilter:
		return f == nil
	case *DateFilter:
		return f == nil
	case *OrFilter:
		return f == nil
	case *AndFilter:
		return f == nil
	}
	return false
}

func String(field string, op Operation, value string) *StringFilter {
	return &StringFilter{leaf{Field: field, Operation: op, Value: value}}
}

func Number(field string, op Operation, value float64) *NumberFilter {
	return &NumberFilter{leaf{Field: field, Operation: op, Value: value}}
}

func Boolean(field string, op Operation, value bool) *BooleanFilter {
	return &BooleanFilter{leaf{Field: field, Operation: op, Value: value}}
}

// Date builds a date filter; value should be a time.Time or a parsable date string.
func Date(field string, op Operation, value any) *DateFilter {
	return &DateFilter{leaf{Field: field, Operation: op, Value: value}}
}

func Or(filters ...Filter) *OrFilter {
	return &OrFilter{Filters: filters}
}

func And(filters ...Filter) *AndFilter {
	return &AndFilter{Filters: filters}
}

// NewLeaf builds a leaf of the given type without checking operation or value.
// It is the entry point for filters assembled from external input.
func NewLeaf(t Type, field string, op Operation, value any) (Leaf, bool) {
	l := leaf{Field: field, Operation: op, Value: value}
	switch t {
	case TypeString:
		return &StringFilter{l}, true
	case TypeNumber:
		return &NumberFilter{l}, true
	case TypeBoolean:
		return &BooleanFilter{l}, true
	case TypeDate:
		return &DateFilter{l}, true
	default:
		return nil, false
	}
}
