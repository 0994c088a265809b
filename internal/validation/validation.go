package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const notBlankTag = "notblank"

// Error is returned when a payload fails validation. Fields maps JSON field
// paths to human readable messages.
type Error struct {
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// FieldError builds a single-field validation error.
func FieldError(field, message string) *Error {
	return &Error{Message: "validation failed", Fields: map[string]string{field: message}}
}

// Invalid builds a validation error without field details.
func Invalid(message string) *Error {
	return &Error{Message: message}
}

// Validator wraps go-playground/validator with English messages and JSON field names.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New configures a validator instance.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		if str, ok := fl.Field().Interface().(string); ok {
			return strings.TrimSpace(str) != ""
		}
		return false
	})
	_ = validate.RegisterTranslation(notBlankTag, translator, func(ut.Translator) error { return nil },
		func(ut.Translator, validator.FieldError) string { return "this field cannot be blank" })

	return &Validator{validate: validate, translator: translator}
}

// Struct validates a payload and converts failures into *Error.
func (v *Validator) Struct(payload interface{}) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Invalid(err.Error())
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldPath(fe.Namespace())] = fe.Translate(v.translator)
	}
	return &Error{Message: "validation failed", Fields: fields}
}

// fieldPath drops the root struct name and embedded struct names from a namespace.
func fieldPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}

	kept := make([]string, 0, len(segments))
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if i < len(segments)-1 && unicode.IsUpper(rune(segment[0])) {
			continue
		}
		kept = append(kept, segment)
	}
	if len(kept) == 0 {
		return namespace
	}
	return strings.Join(kept, ".")
}
