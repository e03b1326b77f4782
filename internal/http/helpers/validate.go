package helpers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	httperrors "github.com/dropDatabas3/hellotasks/internal/http/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator devuelve la instancia compartida (cachea metadata de structs).
// Los errores reportan el nombre JSON del campo, no el de Go.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct valida los tags `validate` de v.
// Devuelve ErrValidation con detalle "campo: regla" listo para WriteError.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return httperrors.ErrValidation.WithCause(err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeFieldError(fe))
	}
	return httperrors.ErrValidation.WithDetail(strings.Join(parts, "; ")).WithCause(err)
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "max":
		return fmt.Sprintf("%s: must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s: must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s]", field, fe.Param())
	case "url", "http_url":
		return field + ": must be a valid URL"
	default:
		return fmt.Sprintf("%s: failed %q", field, fe.Tag())
	}
}
