package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"dealdrop/internal/utils"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// rule is a custom tag together with the message shown when it fails.
type rule struct {
	tag     string
	fn      validator.Func
	message string
}

var rules = []rule{
	{tag: "object_id", fn: isObjectID, message: "Invalid ID format"},
	{tag: "future_date", fn: isFutureDate, message: "Date must be in the future"},
	{tag: "redemption_token", fn: isRedemptionToken, message: "Code must be a 6-digit code or a QR token"},
}

var validate = newValidator(validator.New())

func newValidator(v *validator.Validate) *validator.Validate {
	// Report fields by their JSON names, which is what clients sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			panic(fmt.Sprintf("validators: register %s: %v", r.tag, err))
		}
	}
	return v
}

// RegisterGinValidators makes the custom tags available to gin's binding
// engine so request structs can use them in `binding` tags.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	newValidator(v)
	return nil
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Field + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

// Details is the field -> message map of the error envelope.
func (v ValidationErrors) Details() map[string]string {
	details := make(map[string]string, len(v))
	for _, e := range v {
		details[e.Field] = e.Message
	}
	return details
}

// ValidateStruct checks s against its `validate` tags. The result is empty
// when s is valid.
func ValidateStruct(s interface{}) ValidationErrors {
	return fromValidator(validate.Struct(s))
}

// FieldErrors flattens a binding error into field -> message for the error
// envelope. ok is false when err is not a validation failure, such as
// malformed JSON.
func FieldErrors(err error) (map[string]string, bool) {
	errs := fromValidator(err)
	if len(errs) == 0 {
		return nil, false
	}
	return errs.Details(), true
}

func fromValidator(err error) ValidationErrors {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return nil
	}
	out := make(ValidationErrors, len(fieldErrors))
	for i, fe := range fieldErrors {
		out[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag(), Message: message(fe)}
	}
	return out
}

func message(fe validator.FieldError) string {
	for _, r := range rules {
		if r.tag == fe.Tag() {
			return r.message
		}
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "max":
		return fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return "Validation failed for " + fe.Field()
	}
}

// Empty values pass the custom rules; `required` decides whether they may be
// empty.

func isObjectID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || primitive.IsValidObjectID(value)
}

// isFutureDate accepts time.Time fields and timestamp strings.
func isFutureDate(fl validator.FieldLevel) bool {
	switch value := fl.Field().Interface().(type) {
	case time.Time:
		return value.After(time.Now())
	case string:
		if value == "" {
			return true
		}
		t, err := utils.ParseTimestamp(value)
		return err == nil && t.After(time.Now())
	default:
		return false
	}
}

// isRedemptionToken accepts what a vendor can scan or type: a 6-digit code or
// a UUID QR token.
func isRedemptionToken(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	return value == "" || utils.IsRedemptionCode(value) || utils.IsQRToken(value)
}
