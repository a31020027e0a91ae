package services

import (
	"errors"
	"fmt"

	"github.com/tallyledger/backend/internal/storage"
)

var (
	ErrInvalidAccount         = errors.New("invalid account")
	ErrReconciledTransaction  = errors.New("transaction is reconciled")
	ErrNotFound               = errors.New("not found")
	ErrInvalidAmount          = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrAccountRoleMismatch    = errors.New("account role does not match transaction type")
	ErrImportInProgress       = errors.New("an import is already running for this business")
	ErrAtomicityFailure       = errors.New("atomic operation failed")
)

// InvalidAccountError reports an account that cannot take part in a posting.
type InvalidAccountError struct {
	AccountID string
	Reason    string
}

func (e *InvalidAccountError) Error() string {
	return fmt.Sprintf("invalid account %s: %s", e.AccountID, e.Reason)
}

func (e *InvalidAccountError) Unwrap() error { return ErrInvalidAccount }

// AtomicityError wraps a failure raised inside an atomic scope. Nothing the
// scope wrote is visible after it is returned.
type AtomicityError struct {
	Op  string
	Err error
}

func (e *AtomicityError) Error() string {
	return fmt.Sprintf("%s rolled back: %v", e.Op, e.Err)
}

func (e *AtomicityError) Unwrap() []error { return []error{ErrAtomicityFailure, e.Err} }

// atomic passes client errors through untouched and wraps everything else.
func atomic(op string, err error) error {
	if err == nil || IsClientError(err) || IsNotFound(err) || IsConflict(err) {
		return err
	}
	return &AtomicityError{Op: op, Err: err}
}

func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAccount) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransactionType) ||
		errors.Is(err, ErrAccountRoleMismatch)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, storage.ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrReconciledTransaction) || errors.Is(err, ErrImportInProgress)
}
