// Package validator checks the request bodies of the API against the
// `validate` struct tags of their models.
package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// phoneRegex matches international phone numbers, as accepted by the SMS
// receipts.
var phoneRegex = regexp.MustCompile(`^\+[0-9\s\(\)\-]+$`)

// ValidationError represents an individual validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a slice of ValidationError.
type ValidationErrors []ValidationError

// Error returns a string representation of the validation errors.
func (ve ValidationErrors) Error() string {
	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return sb.String()
}

// Validator is a wrapper around the go-playground/validator package.
type Validator struct {
	validator *validator.Validate
}

// New creates a new Validator with the payment validations registered.
func New() *Validator {
	v := validator.New()
	// report the json name of the fields
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("phone", validatePhone); err != nil {
		panic(err)
	}
	return &Validator{validator: v}
}

// Validate validates a struct. The returned error, if the struct has invalid
// fields, is a ValidationErrors.
func (v *Validator) Validate(s any) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err
	}
	validationErrors := make(ValidationErrors, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		// drop the name of the top level struct
		field := fieldErr.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: getErrorMessage(fieldErr),
		})
	}
	return validationErrors
}

func validatePhone(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	return phoneRegex.MatchString(fl.Field().String())
}

// getErrorMessage returns a human-readable error message for a validation error.
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("Must be at least %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters long", err.Param())
	case "numeric":
		return "Must contain only digits"
	case "phone":
		return "Invalid phone number format"
	default:
		return fmt.Sprintf("Invalid value: %s", err.Tag())
	}
}
