package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iho/chatledger/internal/domain"
)

// ValidCurrency accepts currency codes and aliases that normalize to a valid code.
var ValidCurrency validator.Func = func(fl validator.FieldLevel) bool {
	if c, ok := fl.Field().Interface().(string); ok {
		_, err := domain.NormalizeCurrency(c)
		return err == nil
	}
	return false
}

// NewValidator returns a validator that knows the currency rule and reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails on an empty tag or a nil func.
	_ = v.RegisterValidation("currency", ValidCurrency)
	return v
}

// ValidationMessage describes the first failed rule of err.
// Errors other than validation errors are returned as is.
func ValidationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}

	field := ve[0]
	switch field.Tag() {
	case "required":
		return field.Field() + " is required"
	case "currency":
		return fmt.Sprintf("%s %q is not a valid currency", field.Field(), field.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field.Field(), field.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field.Field(), field.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field.Field(), field.Param())
	default:
		return fmt.Sprintf("%s failed the %s rule", field.Field(), field.Tag())
	}
}
