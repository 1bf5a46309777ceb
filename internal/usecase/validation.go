package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xavierca1/zag-leads/internal/entity"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateLeadAttributes returns one entry per offending field, in field order.
func ValidateLeadAttributes(attrs entity.LeadAttributes) []ValidationError {
	err := validate.Struct(attrs)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: "payload", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is invalid"
	case "max":
		return "must not exceed " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func normalizeAttributes(attrs entity.LeadAttributes) entity.LeadAttributes {
	trim := strings.TrimSpace
	attrs.Email = entity.NormalizeEmail(attrs.Email)
	attrs.FirstName = trim(attrs.FirstName)
	attrs.LastName = trim(attrs.LastName)
	attrs.Company = trim(attrs.Company)
	attrs.Title = trim(attrs.Title)
	attrs.LinkedInURL = trim(attrs.LinkedInURL)
	attrs.InterestedIn = trim(attrs.InterestedIn)
	attrs.Source = trim(attrs.Source)
	attrs.Industry = trim(attrs.Industry)
	attrs.Website = trim(attrs.Website)
	return attrs
}
