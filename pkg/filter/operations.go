package filter

import (
	"sort"
	"strings"
	"time"
)

type operationFunc[T any] func(target, value T) bool

// The registries are built once and only read afterwards, so they are shared
// by all evaluators without locking.
var (
	stringOperations = map[Operation]operationFunc[string]{
		OpEq:         func(target, value string) bool { return target == value },
		OpStartsWith: strings.HasPrefix,
		OpEndsWith:   strings.HasSuffix,
		OpContains:   strings.Contains,
	}

	numberOperations = map[Operation]operationFunc[float64]{
		OpEq:  func(target, value float64) bool { return target == value },
		OpGt:  func(target, value float64) bool { return target > value },
		OpLt:  func(target, value float64) bool { return target < value },
		OpGte: func(target, value float64) bool { return target >= value },
		OpLte: func(target, value float64) bool { return target <= value },
	}

	booleanOperations = map[Operation]operationFunc[bool]{
		OpEq: func(target, value bool) bool { return target == value },
	}

	// Dates compare by millisecond instant, independent of location.
	dateOperations = map[Operation]operationFunc[time.Time]{
		OpEq:     func(target, value time.Time) bool { return target.UnixMilli() == value.UnixMilli() },
		OpAfter:  func(target, value time.Time) bool { return target.UnixMilli() > value.UnixMilli() },
		OpBefore: func(target, value time.Time) bool { return target.UnixMilli() < value.UnixMilli() },
	}
)

func hasOperation(t Type, op Operation) bool {
	var ok bool
	switch t {
	case TypeString:
		_, ok = stringOperations[op]
	case TypeNumber:
		_, ok = numberOperations[op]
	case TypeBoolean:
		_, ok = booleanOperations[op]
	case TypeDate:
		_, ok = dateOperations[op]
	}
	return ok
}

// Operations lists the operations defined for a leaf type in lexical order.
// Combinator types have none.
func Operations(t Type) []Operation {
	var ops []Operation
	switch t {
	case TypeString:
		ops = keys(stringOperations)
	case TypeNumber:
		ops = keys(numberOperations)
	case TypeBoolean:
		ops = keys(booleanOperations)
	case TypeDate:
		ops = keys(dateOperations)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

func keys[T any](m map[Operation]operationFunc[T]) []Operation {
	ops := make([]Operation, 0, len(m))
	for op := range m {
		ops = append(ops, op)
	}
	return ops
}
