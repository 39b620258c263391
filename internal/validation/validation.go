// Package validation wraps go-playground/validator with storefront rules
// (password strength) and human-readable messages for the first failing rule.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator"
)

// PasswordRules is the rule set behind the "strongpassword" tag.
const PasswordRules = "min=8,max=128,pwupper,pwlower,pwdigit,pwspecial"

// FieldError reports the first rule an input failed.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// Validator validates request structs and single values.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with the password rules registered.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "pwupper", hasRune(unicode.IsUpper))
	mustRegister(v, "pwlower", hasRune(unicode.IsLower))
	mustRegister(v, "pwdigit", hasRune(unicode.IsDigit))
	mustRegister(v, "pwspecial", hasRune(isSpecial))
	v.RegisterAlias("strongpassword", PasswordRules)

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

func hasRune(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if pred(r) {
				return true
			}
		}
		return false
	}
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

// Struct validates s and returns a *FieldError for the first failure.
func (v *Validator) Struct(s any) error {
	return firstError(v.v.Struct(s), "")
}

// Password checks a single password against PasswordRules.
func (v *Validator) Password(password string) error {
	return firstError(v.v.Var(password, "required,"+PasswordRules), "password")
}

// Email checks a single address for format.
func (v *Validator) Email(email string) error {
	return firstError(v.v.Var(email, "required,email"), "email")
}

func firstError(err error, field string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	name := fe.Field()
	if name == "" {
		name = field
	}
	return &FieldError{
		Field:   name,
		Rule:    fe.ActualTag(),
		Message: message(humanize(name), fe),
	}
}

func message(label string, fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid", "uuid4":
		return label + " must be a valid id"
	case "url":
		return label + " must be a valid URL"
	case "pwupper":
		return label + " must contain at least one uppercase letter"
	case "pwlower":
		return label + " must contain at least one lowercase letter"
	case "pwdigit":
		return label + " must contain at least one number"
	case "pwspecial":
		return label + " must contain at least one special character"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// humanize turns "postalCode" into "Postal code".
func humanize(name string) string {
	if name == "" {
		return "Value"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
