// Package validation checks request payloads and reports failures per field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)
)

const (
	UsernameMaxLength = 150
	PasswordMinLength = 8
	PasswordMaxLength = 128
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	})
}

// Struct validates v against its `validate` tags and returns the failures
// keyed by JSON field name, or nil when v is valid.
func Struct(v any) map[string][]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return map[string][]string{"non_field_errors": {err.Error()}}
	}
	fields := make(map[string][]string, len(vErrs))
	for _, fe := range vErrs {
		fields[fe.Field()] = append(fields[fe.Field()], message(fe))
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "gt", "gte", "number", "numeric":
		return "A valid integer is required."
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "eqfield":
		return "The two password fields didn't match."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}

// ValidateUsername accepts 1-150 letters, digits and the characters @ . + - _.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len([]rune(username)) > UsernameMaxLength {
		return fmt.Errorf("username must not exceed %d characters", UsernameMaxLength)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, numbers, and @/./+/-/_ characters")
	}
	return nil
}

// ValidatePassword enforces the password policy for new accounts.
func ValidatePassword(password, username string) error {
	n := len([]rune(password))
	if n < PasswordMinLength {
		return fmt.Errorf("This password is too short. It must contain at least %d characters.", PasswordMinLength)
	}
	if n > PasswordMaxLength {
		return fmt.Errorf("This password must not exceed %d characters.", PasswordMaxLength)
	}

	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return fmt.Errorf("This password is entirely numeric.")
	}

	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return fmt.Errorf("The password is too similar to the username.")
	}
	return nil
}
