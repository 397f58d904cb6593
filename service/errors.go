package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is the root of every missing-record error
	ErrNotFound = errors.New("not found")

	ErrEventNotFound   = fmt.Errorf("event %w", ErrNotFound)
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	ErrWagerNotFound   = fmt.Errorf("wager %w", ErrNotFound)

	// ErrConcurrencyConflict is returned when lock or transaction contention
	// outlasted the bounded retries
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrWagerAlreadySettled is returned when a status transition finds the
	// wager no longer pending
	ErrWagerAlreadySettled = fmt.Errorf("wager already settled: %w", ErrConcurrencyConflict)

	ErrUsernameTaken = errors.New("username already taken")
)

// ValidationError reports a malformed request: bad odds, stake or line shape
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

// InsufficientFundsError is returned when a stake exceeds the account balance
type InsufficientFundsError struct {
	AccountID int64
	Balance   decimal.Decimal
	Stake     decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s", e.Balance.StringFixed(2), e.Stake.StringFixed(2))
}

// FetchErrorKind classifies score provider failures
type FetchErrorKind string

const (
	FetchNotFound  FetchErrorKind = "not_found"
	FetchTransient FetchErrorKind = "transient"
	FetchMalformed FetchErrorKind = "malformed"
)

// ExternalFetchError is returned when the final score could not be obtained.
// No state has been touched when it is returned.
type ExternalFetchError struct {
	Kind       FetchErrorKind
	ExternalID string
	Err        error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("score fetch for %s failed (%s): %v", e.ExternalID, e.Kind, e.Err)
}

func (e *ExternalFetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry under backoff
func (e *ExternalFetchError) Retryable() bool {
	return e.Kind == FetchTransient
}

// PersistenceError wraps a storage failure that rolled the transaction back
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsRetryableFetch reports whether err is a transient score fetch failure
func IsRetryableFetch(err error) bool {
	var fetchErr *ExternalFetchError
	return errors.As(err, &fetchErr) && fetchErr.Retryable()
}
