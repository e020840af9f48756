// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/hotel-booking-saga/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// DateAfter validates that a time.Time value is strictly after the reference.
type DateAfter struct {
	Reference time.Time
	Message   string
}

// Validate checks the value against the reference date.
func (d DateAfter) Validate(value interface{}) error {
	t, ok := value.(time.Time)
	if !ok {
		return validation.NewError("validation_date_after", "must be a date")
	}
	if !t.After(d.Reference) {
		message := d.Message
		if message == "" {
			message = "must be after " + d.Reference.Format(time.RFC3339)
		}
		return validation.NewError("validation_date_after", message)
	}
	return nil
}
