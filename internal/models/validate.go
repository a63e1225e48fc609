package models

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const nationalIDLength = 12

var (
	ErrNationalIDNotNumeric = errors.New("Aadhar number must be numbers only")
	ErrNationalIDTooLong    = errors.New("Aadhar number cannot exceed 12 digits")
	ErrNationalIDLength     = errors.New("Aadhar number must be 12 digits")
)

// ValidateNationalID accepts an empty value or exactly twelve ASCII digits.
func ValidateNationalID(s string) error {
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ErrNationalIDNotNumeric
		}
	}
	switch {
	case len(s) > nationalIDLength:
		return ErrNationalIDTooLong
	case len(s) < nationalIDLength:
		return ErrNationalIDLength
	}
	return nil
}

// ValidationError carries the human readable messages of a failed request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	slices.Sort(parts)
	return strings.Join(parts, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("aadhar", func(fl validator.FieldLevel) bool {
			return ValidateNationalID(strings.TrimSpace(fl.Field().String())) == nil
		})
		validate = v
	})
	return validate
}

// Validate checks v against its validate tags. Failures come back as a
// *ValidationError.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must be numbers only"
	case "len":
		return fmt.Sprintf("must be exactly %s digits", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "aadhar":
		if s, ok := fe.Value().(string); ok {
			if err := ValidateNationalID(strings.TrimSpace(s)); err != nil {
				return err.Error()
			}
		}
		return "is not a valid Aadhar number"
	default:
		return "is invalid"
	}
}
