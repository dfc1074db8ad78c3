package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field invariant of r and returns a *ValidationError
// naming the first offending fields.
func (r *Record) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Msg: err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return &ValidationError{Msg: strings.Join(msgs, "; ")}
}

func describe(fe validator.FieldError) string {
	field := fieldName(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

// fieldName turns "Record.Salary.Min" into "salary.min".
func fieldName(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToLower(p[:1]) + p[1:]
	}
	return strings.Join(parts, ".")
}
