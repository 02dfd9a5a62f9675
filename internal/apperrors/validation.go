package apperrors

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidator converts the first validator field error into a
// ValidationError with a client-facing field path, e.g. "segments[0].text"
func FromValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewValidationError("body", err.Error())
	}

	fe := fieldErrs[0]
	field := jsonPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return NewValidationError(field, "is required")
	case "max":
		return NewValidationError(field, "must be at most "+fe.Param())
	case "min":
		return NewValidationError(field, "must be at least "+fe.Param())
	case "gte":
		return NewValidationError(field, "must be greater than or equal to "+fe.Param())
	default:
		return NewValidationError(field, "failed "+fe.Tag()+" check")
	}
}

// jsonPath drops the root struct name and lowercases the first letter of
// each segment
func jsonPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
