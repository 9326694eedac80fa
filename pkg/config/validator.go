package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("config: translator not found")

// Validator checks a Config against its struct tags.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// ValidationError maps dotted keys, e.g. "otp.digits", to messages.
type ValidationError map[string]string

func (ve ValidationError) Error() string {
	if len(ve) == 0 {
		return "config: validation error"
	}

	b, err := json.Marshal(map[string]string(ve))
	if err != nil {
		return fmt.Sprintf("config: validation error (failed to marshal: %v)", err)
	}
	return "config: invalid configuration: " + string(b)
}

// NewValidator builds a Validator with English messages.
func NewValidator() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	return &Validator{validate: validate, translator: enTrans}, nil
}

// Validate returns a ValidationError listing every invalid field.
func (v *Validator) Validate(cfg *Config) error {
	err := v.validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := make(ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		ve[key] = fe.Translate(v.translator)
	}
	return ve
}
