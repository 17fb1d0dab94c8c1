package validator

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// ErrTranslatorNotFound is returned when the English translator is missing.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10ValidationError maps a JSON field name to its English message.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(vs))
	for _, field := range slices.Sorted(maps.Keys(vs)) {
		parts = append(parts, field+": "+vs[field])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (vs V10ValidationError) Values() map[string]string { return vs }

// customRule is a tag this package adds on top of the built-ins.
type customRule struct {
	tag     string
	message string
	check   validator.Func
}

var customRules = []customRule{
	{
		tag:     "notblank",
		message: "{0} is a required field",
		check: func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && strings.TrimSpace(s) != ""
		},
	},
}

// V10Validator is the go-playground implementation of Validator.
type V10Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	english := en.New()
	trans, ok := ut.New(english, english).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("register translations: %w", err)
	}

	for _, rule := range customRules {
		if err := registerRule(v, trans, rule); err != nil {
			return nil, fmt.Errorf("register %s: %w", rule.tag, err)
		}
	}

	return &V10Validator{validate: v, trans: trans}, nil
}

func registerRule(v *validator.Validate, trans ut.Translator, rule customRule) error {
	if err := v.RegisterValidation(rule.tag, rule.check); err != nil {
		return err
	}
	return v.RegisterTranslation(rule.tag, trans,
		func(t ut.Translator) error { return t.Add(rule.tag, rule.message, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			if msg, err := t.T(fe.Tag(), fe.Field()); err == nil {
				return msg
			}
			return fe.Error()
		},
	)
}

// Validate returns a V10ValidationError when data breaks one of its tags.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Translate(v.trans)
	}
	return out
}

// jsonFieldName reports fields by their JSON name, which is what clients sent.
func jsonFieldName(fld reflect.StructField) string {
	switch name, _, _ := strings.Cut(fld.Tag.Get("json"), ","); name {
	case "-":
		return ""
	case "":
		return fld.Name
	default:
		return name
	}
}
