package filter

import (
	stderrors "errors"

	apperrors "sieve/pkg/errors"
)

// Messages returns the messages matching f, in input order and with
// duplicates kept. Neither messages nor f is modified.
//
// Under the default strict policy the first failure for any message aborts the
// call and is returned; the error carries the offending field, value, expected
// type, filter type and message index. With Lenient, failing messages are
// excluded and reported to the logger, and the call only fails for a nil filter.
func Messages(messages []Message, f Filter, opts ...Option) ([]Message, error) {
	return NewEvaluator(opts...).Messages(messages, f)
}

// Match evaluates a single message.
func Match(msg Message, f Filter, opts ...Option) (bool, error) {
	return NewEvaluator(opts...).Evaluate(msg, f)
}

func (e *Evaluator) Messages(messages []Message, f Filter) ([]Message, error) {
	if f == nil || isNilFilter(f) {
		return nil, invalidFilter("filter is nil")
	}

	matched := make([]Message, 0, len(messages))
	for i, msg := range messages {
		ok, err := e.Evaluate(msg, f)
		if err != nil {
			if !e.lenient {
				return nil, withMessageIndex(err, i)
			}
			e.logger.Warnw("Message excluded after filter failure",
				"error", err,
				"message_index", i,
			)
			continue
		}
		if ok {
			matched = append(matched, msg)
		}
	}

	return matched, nil
}

func withMessageIndex(err error, index int) error {
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) {
		return appErr.WithDetail("message_index", index)
	}
	return err
}
