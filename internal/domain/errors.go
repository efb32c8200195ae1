package domain

import (
	"errors"
	"fmt"
)

// Session and internal faults. ErrDraftNotFound covers both expiry and an
// already-consumed draft; the wizard session cannot continue past it.
var (
	ErrDraftNotFound    = errors.New("draft not found")
	ErrStageConflict    = errors.New("operation not allowed in current stage")
	ErrUnknownOption    = errors.New("option not in catalog")
	ErrCarNotFound      = errors.New("car not found")
	ErrCarUnavailable   = errors.New("car is not available")
	ErrLocationNotFound = errors.New("location not found")
)

// Validation error codes, surfaced to the caller with the offending field.
const (
	CodeBadDates            = "bad_dates"
	CodeDriverAgeOutOfRange = "driver_age_out_of_range"
	CodeNoDriverProvided    = "no_driver_provided"
	CodeLicenseExpired      = "license_expired"
	CodeOptionQuantity      = "option_quantity_out_of_range"
	CodeMissingField        = "missing_field"
)

// ValidationError is local and non-fatal: the draft stays in its last valid
// stage and the caller may resubmit.
type ValidationError struct {
	Field string
	Code  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Code)
}

func NewValidationError(field, code string) *ValidationError {
	return &ValidationError{Field: field, Code: code}
}

// PaymentError marks a recoverable gateway failure. The draft stays in
// PAYMENT_PENDING and the payment step may be retried; it is never conflated
// with success.
type PaymentError struct {
	Op  string
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s failed: %v", e.Op, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }
