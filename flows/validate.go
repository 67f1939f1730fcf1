package flows

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InvalidNameMessage is shown when a name contains characters outside [A-Za-z0-9 ].
const InvalidNameMessage = "Names shouldn't have special characters."

var namePattern = regexp.MustCompile(`^[A-Za-z0-9 ]*$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("contactname", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return v
}

type names struct {
	Firstname string `validate:"contactname"`
	Lastname  string `validate:"contactname"`
}

// ValidationError lists the form fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "flows: invalid " + strings.Join(e.Fields, ", ")
}

// ValidateNames checks both names against the [A-Za-z0-9 ] whitelist.
func ValidateNames(first, last string) error {
	err := validate.Struct(names{Firstname: first, Lastname: last})
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, strings.ToLower(fe.Field()))
	}
	return verr
}
