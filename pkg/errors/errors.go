// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberNotApproved   = errors.New("member not approved")
	ErrInvestmentNotFound  = errors.New("investment not found")
	ErrSummaryNotFound     = errors.New("investment summary not found")
	ErrSettingsNotFound    = errors.New("sacco settings not found")
	ErrLoanTypeNotFound    = errors.New("loan type not found")
	ErrApplicationNotFound = errors.New("loan application not found")
	ErrGuarantorNotFound   = errors.New("loan guarantor not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrPaymentNotFound     = errors.New("loan payment not found")
	ErrPenaltyNotFound     = errors.New("loan penalty not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBalanceNotFound     = errors.New("member balance not found")
	ErrFeeNotFound         = errors.New("transaction fee not found")
	ErrBatchNotFound       = errors.New("transaction batch not found")
	ErrDividendNotFound    = errors.New("dividend payment not found")
	ErrRecurringNotFound   = errors.New("recurring transaction not found")
	ErrTargetNotFound      = errors.New("investment target not found")
	ErrCollateralNotFound  = errors.New("loan collateral not found")

	// Generated identifier collided with an existing row
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrAlreadyExists       = errors.New("record already exists")
	ErrRevocationOff       = errors.New("token revocation unavailable")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError names the current state of the entity that refused the operation.
type InvalidStateError struct {
	Entity   string
	ID       string
	Current  string
	Required []string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %s, requires %s", e.Entity, e.ID, e.Current, strings.Join(e.Required, " or "))
}

func NewInvalidState(entity, id, current string, required ...string) error {
	return &InvalidStateError{Entity: entity, ID: id, Current: current, Required: required}
}

// LimitExceededError carries the computed limit and the value that would breach it.
type LimitExceededError struct {
	LimitName string
	Limit     decimal.Decimal
	Attempted decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s exceeded: limit %s, attempted %s", e.LimitName, e.Limit.StringFixed(2), e.Attempted.StringFixed(2))
}

func NewLimitExceeded(name string, limit, attempted decimal.Decimal) error {
	return &LimitExceededError{LimitName: name, Limit: limit, Attempted: attempted}
}

// EligibilityError holds every violation found, not just the first.
type EligibilityError struct {
	Violations []string
}

func (e *EligibilityError) Error() string {
	return "not eligible: " + strings.Join(e.Violations, "; ")
}

type NotFoundError struct {
	Entity string
	ID     string
	err    error
}

func (e *NotFoundError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.err.Error(), e.ID)
	}
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.err }

// NotFound wraps one of the sentinel errors so errors.Is keeps matching it.
func NotFound(sentinel error, entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id, err: sentinel}
}

// ConcurrencyConflictError means a lock or serialization conflict; the call may be retried.
type ConcurrencyConflictError struct {
	Op  string
	Err error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("concurrency conflict during %s: %v", e.Op, e.Err)
	}
	return "concurrency conflict during " + e.Op
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsLimitExceeded(err error) bool {
	var target *LimitExceededError
	return errors.As(err, &target)
}

func IsEligibility(err error) bool {
	var target *EligibilityError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConcurrencyConflictError
	return errors.As(err, &target)
}

// Is, As and New re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
