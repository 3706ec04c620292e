package shared

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("maxbytes", maxBytes)
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// maxBytes bounds the UTF-8 byte length of a string, unlike max which counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// ValidateStruct checks input against its validate tags. A missing required
// field yields missingMsg; any other rule failure names the offending field.
func ValidateStruct(input any, missingMsg string) error {
	err := validatorInstance().Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Validation(missingMsg)
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return Validation(missingMsg)
		}
	}
	return Validation("Invalid " + fieldErrs[0].Field() + ".")
}
