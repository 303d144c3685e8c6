package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	"github.com/go-playground/validator/v10"
)

// Shared validator; reports fields by their JSON names
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest validates a request struct and returns the first failing
// field as "validation failed: <field>: <message>".
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return fmt.Errorf("validation failed: %s: %s", ve[0].Field(), formatValidationError(ve[0]))
	}
	return fmt.Errorf("validation failed: %w", err)
}

// writeValidationError reports a ValidateRequest failure as a 400 with the
// failing field in details
func writeValidationError(w http.ResponseWriter, err error) {
	details := strings.TrimPrefix(err.Error(), "validation failed: ")
	pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "bad_request", "Invalid request", details)
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
