package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Dosada05/hackathon-partner-finder/utils"
	"github.com/go-playground/validator/v10"
)

// validate - общий экземпляр validator (потокобезопасен, кэширует разбор тегов).
var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В ошибках поле называется так же, как в JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "github_url", utils.IsValidGithubURL)
	mustRegister(v, "linkedin_url", utils.IsValidLinkedinURL)
	mustRegister(v, "email_address", utils.IsValidEmail)
	return v
}

func mustRegister(v *validator.Validate, tag string, fn func(string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

// validateStruct запускает теги validate и собирает ошибки в ValidationError.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validation: %w", err)
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i > 0 {
			name = name[:i] // tech_stack[2] -> tech_stack
		}
		if _, exists := fields[name]; !exists {
			fields[name] = fieldMessage(name, fe)
		}
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(name string, fe validator.FieldError) string {
	label := strings.ReplaceAll(name, "_", " ")

	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("select at least one %s entry", label)
		}
		return label + " is required"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("select at least %s %s entry", fe.Param(), label)
		default:
			return fmt.Sprintf("%s must be at least %s", label, fe.Param())
		}
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("%s cannot have more than %s entries", label, fe.Param())
		default:
			return fmt.Sprintf("%s cannot exceed %s", label, fe.Param())
		}
	case "gt":
		return label + " must be in the future"
	case "github_url":
		return "please enter a valid GitHub profile URL"
	case "linkedin_url":
		return "please enter a valid LinkedIn profile URL"
	case "email_address":
		return "invalid email address"
	}
	return fmt.Sprintf("%s is invalid", label)
}
