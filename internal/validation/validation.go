package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// report json field names instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates s and condenses the first violation into a readable error.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid validation target: %w", err)
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	first := errs[0]
	field := first.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch first.Tag() {
	case "required":
		return fmt.Errorf("field '%s' is required", field)
	case "max":
		return fmt.Errorf("field '%s' must be at most %s characters long", field, first.Param())
	case "len":
		return fmt.Errorf("field '%s' must be exactly %s characters long", field, first.Param())
	case "oneof":
		return fmt.Errorf("field '%s' must be one of [%s]", field, first.Param())
	default:
		return fmt.Errorf("field '%s' validation failed on tag '%s'", field, first.Tag())
	}
}
