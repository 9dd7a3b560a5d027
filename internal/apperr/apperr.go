// Package apperr defines the coded errors surfaced by the ledger. Every
// rejected precondition maps to exactly one code; Conflict is the only code a
// caller should retry.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and the HTTP layer.
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeCrossTenant        Code = "CROSS_TENANT"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeInsufficientBudget Code = "INSUFFICIENT_BUDGET"
	CodeCooldownActive     Code = "COOLDOWN_ACTIVE"
	CodeAmountExceedsLimit Code = "AMOUNT_EXCEEDS_LIMIT"
	CodeFamilyTooSmall     Code = "FAMILY_TOO_SMALL"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
)

// Error is a coded error with optional structured details for rendering
// user-facing messages (available vs requested budget, days remaining, ...).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports a missing entity.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// CrossTenant reports an entity that belongs to a different association.
func CrossTenant(resource, id string) *Error {
	return &Error{
		Code:    CodeCrossTenant,
		Message: fmt.Sprintf("%s %q belongs to another association", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

// InvalidInput reports a malformed request field.
func InvalidInput(field, message string) *Error {
	return &Error{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("%s: %s", field, message),
		Details: map[string]any{"field": field},
	}
}

// InvalidState reports an operation attempted against an entity that is not
// in the required state.
func InvalidState(message string) *Error {
	return &Error{Code: CodeInvalidState, Message: message}
}

// InsufficientBudget reports a dispatch amount that exceeds the association
// balance. Amounts are in minor units.
func InsufficientBudget(available, requested int64) *Error {
	return &Error{
		Code:    CodeInsufficientBudget,
		Message: fmt.Sprintf("insufficient budget: available %d, requested %d", available, requested),
		Details: map[string]any{"available": available, "requested": requested},
	}
}

// CooldownActive reports a family still inside its cooldown window.
func CooldownActive(daysRemaining int) *Error {
	return &Error{
		Code:    CodeCooldownActive,
		Message: fmt.Sprintf("family cooldown active, %d day(s) remaining", daysRemaining),
		Details: map[string]any{"days_remaining": daysRemaining},
	}
}

// AmountExceedsLimit reports a dispatch amount above the active AMOUNT rule.
func AmountExceedsLimit(limit int64) *Error {
	return &Error{
		Code:    CodeAmountExceedsLimit,
		Message: fmt.Sprintf("amount exceeds per-dispatch limit of %d", limit),
		Details: map[string]any{"limit": limit},
	}
}

// FamilyTooSmall reports a family below the active ELIGIBILITY member floor.
func FamilyTooSmall(required int64) *Error {
	return &Error{
		Code:    CodeFamilyTooSmall,
		Message: fmt.Sprintf("family has fewer than %d member(s)", required),
		Details: map[string]any{"required": required},
	}
}

// Conflict reports a commit that could not be serialized against a
// concurrent writer. Safe to retry from fresh reads.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// CodeOf extracts the code from err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRuleViolation reports whether err is one of the rule-violation codes.
func IsRuleViolation(err error) bool {
	switch CodeOf(err) {
	case CodeCooldownActive, CodeAmountExceedsLimit, CodeFamilyTooSmall:
		return true
	}
	return false
}
