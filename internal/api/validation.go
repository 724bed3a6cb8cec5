package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	requestValidator = validator.New()

	errInvalidJSON = errors.New("invalid JSON body")
)

// decodeAndValidate reads exactly one JSON object into dst, rejecting unknown
// fields, then applies its validate tags.
func decodeAndValidate(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errInvalidJSON
	}
	if dec.More() {
		return errInvalidJSON
	}

	err := requestValidator.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.New("invalid request payload")
	}
	return errors.New(validationMessage(fieldErrs[0]))
}

func validationMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return "invalid " + field
	}
}

// jsonFieldName turns a Go field name into the camelCase name clients send.
func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
