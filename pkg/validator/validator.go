// Package validator hooks go-playground/validator into echo so request
// payloads can declare their constraints as struct tags.
package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestValidator satisfies echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// New builds a validator that reports fields under their json names, which
// is what API clients actually sent.
func New() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &RequestValidator{validate: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.validate.Struct(i)
}
