// Package validation checks request payloads before they reach services.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/pixelvault/apiserver/internal/apperr"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

const (
	MinPasswordLength = 8
	// bcrypt only hashes the first 72 bytes and rejects anything longer.
	MaxPasswordBytes = 72
	MaxBioLength     = 500
)

// PasswordRule describes what ValidPassword accepts.
const PasswordRule = "password must be 8 to 72 bytes long and contain upper, lower and digit"

// Validator wraps go-playground/validator with the account rules.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator with the "username" and "password" tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidPassword(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and converts the first failure into a validation error.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("", "invalid request")
	}
	fe := verrs[0]
	return apperr.Validation(fe.Field(), message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "email must be a valid email address"
	case "username":
		return "username must be 3-20 characters of letters, digits or underscores"
	case "password":
		return PasswordRule
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// ValidUsername reports whether s is 3-20 letters, digits or underscores.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// ValidPassword reports whether s is 8 characters to 72 bytes and mixes
// upper, lower and digit.
func ValidPassword(s string) bool {
	if utf8.RuneCountInString(s) < MinPasswordLength || len(s) > MaxPasswordBytes {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidEmail uses the validator's email rule.
func (v *Validator) ValidEmail(s string) bool {
	return v.validate.Var(s, "required,email") == nil
}
