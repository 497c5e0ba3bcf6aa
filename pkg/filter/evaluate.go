package filter

import (
	"time"

	"go.uber.org/zap"
)

// Logger receives diagnostics for failures a lenient evaluator swallows.
// *zap.SugaredLogger and sieve/internal/logger.Logger both satisfy it.
type Logger interface {
	Warnw(msg string, keysAndValues ...interface{})
}

// Evaluator decides whether a message matches a filter. It holds only its
// error policy, so one Evaluator may be shared by concurrent goroutines.
//
// A strict evaluator returns the first leaf failure (type mismatch, invalid
// date, unknown operation) unchanged. A lenient evaluator logs the failure and
// treats the failing leaf as a non-match, which lets an OR still match on a
// later branch.
type Evaluator struct {
	lenient       bool
	ignoreMissing bool
	logger        Logger
}

type Option func(*Evaluator)

// Strict selects the abort-on-error policy (true, the default) or the lenient one.
func Strict(strict bool) Option {
	return func(e *Evaluator) {
		e.lenient = !strict
	}
}

func Lenient() Option {
	return Strict(false)
}

// IgnoreMissingFields makes an absent message field a plain non-match in both
// policies instead of a type mismatch.
func IgnoreMissingFields() Option {
	return func(e *Evaluator) {
		e.ignoreMissing = true
	}
}

func WithLogger(l Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{logger: zap.S()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Lenient() bool {
	return e.lenient
}

// Evaluate reports whether msg matches f.
func (e *Evaluator) Evaluate(msg Message, f Filter) (bool, error) {
	if isNilFilter(f) {
		return false, invalidFilter("%s filter is nil", f.Type())
	}

	switch f := f.(type) {
	case *OrFilter:
		for _, sub := range f.Filters {
			matched, err := e.Evaluate(msg, sub)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	case *AndFilter:
		for _, sub := range f.Filters {
			matched, err := e.Evaluate(msg, sub)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	case *StringFilter:
		return evaluateLeaf[string](e, msg, f, stringOperations, checkString)
	case *NumberFilter:
		return evaluateLeaf[float64](e, msg, f, numberOperations, checkNumber)
	case *BooleanFilter:
		return evaluateLeaf[bool](e, msg, f, booleanOperations, checkBoolean)
	case *DateFilter:
		return evaluateLeaf[time.Time](e, msg, f, dateOperations, coerceDate)
	case nil:
		return false, invalidFilter("filter is nil")
	default:
		return false, invalidFilter("unsupported filter %T", f)
	}
}

type checkFunc[T any] func(field string, v any, kind Kind, source string) (T, error)

func evaluateLeaf[T any](e *Evaluator, msg Message, l Leaf, ops map[Operation]operationFunc[T], check checkFunc[T]) (bool, error) {
	op, ok := ops[l.Op()]
	if !ok {
		return e.fail(l, unknownOperation(l.Type(), l.Target(), l.Op()))
	}

	raw, kind := msg.Lookup(l.Target())
	if kind == KindMissing && e.ignoreMissing {
		return false, nil
	}

	target, err := check(l.Target(), raw, kind, sourceMessage)
	if err != nil {
		return e.fail(l, err)
	}

	value, err := check(l.Target(), l.Operand(), KindOf(l.Operand()), sourceFilter)
	if err != nil {
		return e.fail(l, err)
	}

	return op(target, value), nil
}

// fail applies the error policy at the leaf where the failure happened.
func (e *Evaluator) fail(l Leaf, err error) (bool, error) {
	if !e.lenient {
		return false, err
	}
	e.logger.Warnw("Filter leaf failed, treating as non-match",
		"error", err,
		"filter_type", string(l.Type()),
		"field", l.Target(),
		"operation", string(l.Op()),
	)
	return false, nil
}
