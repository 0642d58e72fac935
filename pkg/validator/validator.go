// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"fmt"
	"html"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "sacco/pkg/errors"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.registerCustomValidations()
	return v
}

// Validate checks i and returns a *errors.ValidationError naming the first
// failing field.
func (v *Validator) Validate(i interface{}) error {
	errs := v.ValidateStructured(i)
	if len(errs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return apperrors.NewValidation(fields[0], errs[fields[0]])
}

// ValidateStructured returns a map of field -> error message
func (v *Validator) ValidateStructured(i interface{}) map[string]string {
	errs := make(map[string]string)
	if err := v.validate.Struct(i); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
				switch e.Tag() {
				case "required":
					msg = "is required"
				case "money":
					msg = "must be a positive amount with at most 2 decimal places"
				case "min":
					msg = fmt.Sprintf("must be at least %s", e.Param())
				case "max":
					msg = fmt.Sprintf("must be at most %s", e.Param())
				case "oneof":
					msg = fmt.Sprintf("must be one of [%s]", e.Param())
				case "gt":
					msg = fmt.Sprintf("must be greater than %s", e.Param())
				}
				errs[e.Field()] = msg
			}
		} else {
			errs["_global"] = err.Error()
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (v *Validator) registerCustomValidations() {
	// decimal.Decimal is validated as float64 for gt/lt checks
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := val.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			// custom type func already converted it
			f, isFloat := fl.Field().Interface().(float64)
			if !isFloat {
				return false
			}
			d = decimal.NewFromFloat(f)
		}
		return d.IsPositive() && d.Equal(d.Truncate(2))
	})
}

// Sanitize cleans string input to prevent XSS attacks
func Sanitize(input string) string {
	return html.EscapeString(strings.TrimSpace(input))
}
