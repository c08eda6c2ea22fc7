// Package validation checks `validate` struct tags and reports the first
// failure as a domain validation error.
package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/UkralStul/echonymous/internal/domain"
)

// DefaultMessage is reported for a failure with no message of its own.
const DefaultMessage = "Validation failed. Check input fields."

// Messages maps "Field.tag" to the text reported when that tag fails.
type Messages map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// notblank is required for strings that may hold only whitespace.
	if err := v.RegisterValidation("notblank", notBlank); err != nil {
		panic(err)
	}
	return v
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Struct validates s. Fields are checked in declaration order and the
// first failing tag decides the message.
func Struct(s any, messages Messages) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "failed to validate input")
	}
	fe := fieldErrs[0]
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return domain.Validation(msg)
	}
	return domain.Validation(DefaultMessage)
}
