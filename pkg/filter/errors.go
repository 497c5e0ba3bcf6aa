package filter

import (
	"errors"
	"fmt"

	apperrors "sieve/pkg/errors"
)

const (
	sourceMessage = "message"
	sourceFilter  = "filter"
)

func typeMismatch(t Type, field string, value any, kind Kind, source string) error {
	msg := fmt.Sprintf("value %q of %s field %q is not of type %s", describe(value), source, field, t)
	if kind == KindMissing {
		msg = fmt.Sprintf("%s field %q is missing, expected type %s", source, field, t)
	}
	return apperrors.ErrTypeMismatch.WithDetails(map[string]interface{}{
		"message":     msg,
		"field":       field,
		"value":       describe(value),
		"actual":      kind.String(),
		"expected":    string(t),
		"filter_type": string(t),
		"source":      source,
		"missing":     kind == KindMissing,
	})
}

func invalidDate(field string, value any, source string, cause error) error {
	return apperrors.ErrInvalidDate.WithCause(cause).WithDetails(map[string]interface{}{
		"message":     fmt.Sprintf("value %q of %s field %q may not be correctly coerced to type date", describe(value), source, field),
		"field":       field,
		"value":       describe(value),
		"expected":    string(TypeDate),
		"filter_type": string(TypeDate),
		"source":      source,
	})
}

func unknownOperation(t Type, field string, op Operation) error {
	return apperrors.ErrUnknownOperation.WithDetails(map[string]interface{}{
		"message":     fmt.Sprintf("operation %q doesn't exist for %q filter type", op, t),
		"field":       field,
		"operation":   string(op),
		"filter_type": string(t),
	})
}

func invalidFilter(format string, args ...any) error {
	return apperrors.ErrInvalidFilter.WithDetail("message", fmt.Sprintf(format, args...))
}

// IsTypeMismatch reports whether err stems from a value of the wrong kind,
// including a missing message field.
func IsTypeMismatch(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeTypeMismatch)
}

func IsInvalidDate(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeInvalidDate)
}

func IsUnknownOperation(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeUnknownOperation)
}

func IsInvalidFilter(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeInvalidFilter)
}

// IsMissingField reports whether err is a type mismatch caused by an absent field.
func IsMissingField(err error) bool {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeTypeMismatch {
		return false
	}
	missing, _ := appErr.Details["missing"].(bool)
	return missing
}
