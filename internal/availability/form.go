package availability

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"consultdesk/internal/models"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeForm trims every field.
func NormalizeForm(form models.BookingForm) models.BookingForm {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Phone = strings.TrimSpace(form.Phone)
	form.Company = strings.TrimSpace(form.Company)
	form.Service = strings.TrimSpace(form.Service)
	form.Message = strings.TrimSpace(form.Message)
	return form
}

// ValidateForm checks the required contact fields. Company and message are
// optional.
func (e *Engine) ValidateForm(form models.BookingForm) error {
	if err := e.validate.Struct(NormalizeForm(form)); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return translateValidationErrors(verrs)
		}
		return err
	}
	return nil
}

// ValidateField checks a single form value, used by step-by-step forms.
func (e *Engine) ValidateField(step models.FormStep, value string) error {
	value = strings.TrimSpace(value)
	tag := "required"
	switch step {
	case models.FormStepEmail:
		tag = "required,email"
	case models.FormStepCompany, models.FormStepMessage:
		return nil
	}
	err := e.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	message := fmt.Sprintf("%s is required", step)
	if verrs[0].Tag() == "email" {
		message = fmt.Sprintf("%s must be a valid email address", step)
	}
	return ValidationErrors{{Field: string(step), Message: message}}
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		field := err.Field()
		message := err.Error()
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		}
		out = append(out, ValidationError{Field: field, Message: message})
	}
	return out
}
