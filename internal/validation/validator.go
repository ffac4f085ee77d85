package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/common"
)

var (
	once     sync.Once
	instance *validatorv10.Validate
)

// New returns a validator that reports JSON field names and understands
// decimal.Decimal fields, so `gte=0` style tags work on money.
func New() *validatorv10.Validate {
	v := validatorv10.New(validatorv10.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Default returns the process-wide validator.
func Default() *validatorv10.Validate {
	once.Do(func() { instance = New() })
	return instance
}

// Struct validates v and converts failures into a 400 AppError whose details
// map each JSON field to a message.
func Struct(v any) error {
	err := Default().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validatorv10.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.BadRequest("invalid request", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = message(fe)
	}
	return common.NewAppError("VALIDATION_ERROR", "request validation failed", http.StatusBadRequest, err).WithDetails(fields)
}

// Decode reads a JSON body into dst and validates it.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return common.BadRequest("request body required", nil)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return common.BadRequest("request body required", err)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return common.NewAppError("PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, err)
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return common.BadRequest("malformed JSON", err).WithDetails(map[string]any{"offset": syntaxErr.Offset})
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return common.BadRequest("invalid JSON payload", err).WithDetails(map[string]string{typeErr.Field: "wrong type"})
		}
		return common.BadRequest("invalid JSON payload", err)
	}
	return Struct(dst)
}

func fieldPath(fe validatorv10.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "gtefield":
		return fmt.Sprintf("must not be before %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
