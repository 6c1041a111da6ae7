package shared

import "errors"

// Error taxonomy sentinels. Domain packages wrap these with fmt.Errorf so
// callers can classify any ledger failure with errors.Is.
var (
	// ErrValidation indicates malformed or out-of-range input, rejected
	// before any store access.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced rake, document, warehouse or
	// allocation is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates duplicate codes/numbers, already-linked,
	// already-closed, already-billed and similar state conflicts.
	ErrConflict = errors.New("conflict")
	// ErrInsufficient indicates a balance or stock shortfall.
	ErrInsufficient = errors.New("insufficient balance")
	// ErrConcurrency is surfaced only after bounded transaction retries
	// are exhausted; the request may be resubmitted.
	ErrConcurrency = errors.New("concurrent update conflict")
)

// Retryable reports whether the caller may safely resubmit the operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}
