package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xavierca1/zag-leads/internal/entity"
)

type DomainError struct {
	Code    string
	Message string
	Fields  []ValidationError
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

func validationFailed(errs []ValidationError) *DomainError {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Field + " (" + e.Message + ")"
	}
	return &DomainError{
		Code:    "VALIDATION_ERROR",
		Message: "validation failed: " + strings.Join(parts, ", "),
		Fields:  errs,
	}
}

// storeError classifies an error coming back from the lead store. Not found
// is passed through untouched so callers can test it with errors.Is.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, entity.ErrLeadNotFound):
		return err
	case IsDomainError(err):
		return err
	case errors.Is(err, entity.ErrEmailAlreadyExists):
		return &DomainError{Code: "EMAIL_CONFLICT", Message: "a lead with this email already exists"}
	case errors.Is(err, entity.ErrStoreWriteFailed):
		return &TechnicalError{Code: "STORE_WRITE_FAILED", Message: fmt.Sprintf("%s: could not persist lead", op), Err: err}
	default:
		return &TechnicalError{Code: "STORE_ERROR", Message: op, Err: err}
	}
}
