package settle

import (
	"errors"
	"fmt"

	"github.com/xraph/settle/settlement"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("settle: not found")
	ErrAlreadyExists = errors.New("settle: already exists")
	ErrInvalidInput  = errors.New("settle: invalid input")
	ErrUnauthorized  = errors.New("settle: unauthorized")

	// Invoice errors
	ErrInvoiceNotFound   = errors.New("settle: invoice not found")
	ErrInvoiceVoided     = errors.New("settle: invoice is voided")
	ErrIncompleteInvoice = errors.New("settle: invoice missing settlement details")
	ErrInvalidAmount     = errors.New("settle: invalid amount")

	// Payment errors
	ErrAlreadyPaid        = errors.New("settle: invoice already paid")
	ErrConflictingPayment = errors.New("settle: conflicting payment evidence")
	ErrSettlementFailed   = errors.New("settle: settlement failed")

	// Exchange rate errors
	ErrRateUnavailable = errors.New("settle: exchange rate unavailable")

	// Access token errors
	ErrTokenNotFound = errors.New("settle: access token not found")
	ErrTokenExpired  = errors.New("settle: access token expired")
	ErrTokenUsed     = errors.New("settle: access token already used")

	// Payable errors
	ErrPayableNotFound = errors.New("settle: payable not found")

	// Store errors
	ErrStoreClosed     = errors.New("settle: store is closed")
	ErrMigrationFailed = errors.New("settle: migration failed")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrPayableNotFound)
}

// IsConflict reports whether err indicates the operation lost a race or
// contradicts recorded state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflictingPayment) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrTokenUsed)
}

// IsTokenError reports whether err is any of the access token sentinels.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenUsed)
}

// IsRetryable reports whether the failure can be retried without first
// confirming external state. Settlement failures are retryable only when
// the transaction was provably never broadcast.
func IsRetryable(err error) bool {
	var se *settlement.Error
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return errors.Is(err, ErrRateUnavailable)
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("settle: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "settle: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("settle: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns the MultiError if it has errors, nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
