// Package validate checks request payloads and identifiers.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrInvalidID = errors.New("ID is not in its proper form")

var validate *validator.Validate

var translator ut.Translator

func init() {
	validate = validator.New()

	// Errors name fields the way clients send them.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.IsSlug(fl.Field().String())
	})

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTranslation("slug", translator,
		func(ut ut.Translator) error {
			return ut.Add("slug", "{0} must only contain lowercase letters, digits and dashes", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("slug", fe.Field())
			return t
		},
	)
}

// Check validates val and returns the first failure as a readable message.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		if len(verrors) < 1 {
			return nil
		}

		return errors.New(verrors[0].Translate(translator))
	}

	return nil
}

func GenerateID() string {
	return uuid.NewString()
}

func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
