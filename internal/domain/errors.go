package domain

import (
	"fmt"

	"leadmarket_backend/platform/apperr"
)

// Stable result codes exposed to API clients.
const (
	CodeValidation           = apperr.CodeValidation
	CodeNotFound             = apperr.CodeNotFound
	CodeForbidden            = apperr.CodeForbidden
	CodeTransientStore       = apperr.CodeUnavailable
	CodeOutcomeUnknown       = apperr.CodeTimeout
	CodeInsufficientCredits  = "InsufficientCredits"
	CodeLeadAlreadyTaken     = "LeadAlreadyTaken"
	CodeAssignmentNotPending = "AssignmentNotPending"
	CodeDuplicateAssignment  = "DuplicateAssignment"
	CodeLeadNotOpen          = "LeadNotOpen"
	CodeInvalidTransition    = "InvalidLeadTransition"
)

// InsufficientCreditsDetails is attached to InsufficientCredits errors.
type InsufficientCreditsDetails struct {
	Balance  int64 `json:"balance"`
	Required int64 `json:"required"`
}

func ErrInsufficientCredits(balance, required int64) *apperr.Error {
	return apperr.PaymentRequired("insufficient credits").
		WithCode(CodeInsufficientCredits).
		WithDetails(InsufficientCreditsDetails{Balance: balance, Required: required})
}

func ErrLeadAlreadyTaken() *apperr.Error {
	return apperr.Conflict("lead already taken by another professional").WithCode(CodeLeadAlreadyTaken)
}

func ErrAssignmentNotPending(status AssignmentStatus) *apperr.Error {
	return apperr.Conflict(fmt.Sprintf("assignment is %s, not PENDING", status)).WithCode(CodeAssignmentNotPending)
}

func ErrDuplicateAssignment() *apperr.Error {
	return apperr.Conflict("professional already holds an assignment for this lead").WithCode(CodeDuplicateAssignment)
}

func ErrLeadNotOpen(status LeadStatus) *apperr.Error {
	return apperr.Conflict(fmt.Sprintf("lead is %s, not OPEN", status)).WithCode(CodeLeadNotOpen)
}

func ErrInvalidLeadTransition(from, to LeadStatus) *apperr.Error {
	return apperr.Conflict(fmt.Sprintf("lead cannot move from %s to %s", from, to)).WithCode(CodeInvalidTransition)
}

func ErrNotFound(resource string) *apperr.Error {
	return apperr.NotFound(resource + " not found")
}

func ErrForbidden(message string) *apperr.Error {
	return apperr.Forbidden(message)
}

func ErrValidation(message string) *apperr.Error {
	return apperr.Validation(message)
}

// ErrTransientStore signals that retries were exhausted; the whole operation may be retried.
func ErrTransientStore(err error) *apperr.Error {
	return apperr.Unavailable("store temporarily unavailable", err)
}

// ErrOutcomeUnknown signals that the caller stopped waiting; the result must be re-queried.
func ErrOutcomeUnknown(err error) *apperr.Error {
	return apperr.Timeout("outcome unknown, re-query the assignment", err)
}
