package errors

import "net/http"

// Error code constants. Errors carry code + params; the UI owns the
// user-facing wording. Backend logs stay in English.

// Ledger precondition codes.
const (
	CodeDomainAlreadyAssigned = "DOMAIN_ALREADY_ASSIGNED"
	CodeServerAtCapacity      = "SERVER_AT_CAPACITY"
	CodeCapacityViolation     = "CAPACITY_VIOLATION"
)

// Lock registry codes.
const (
	CodeLockHeld = "LOCK_HELD"
)

// Referential integrity codes.
const (
	CodeReferentialConflict = "REFERENTIAL_CONFLICT"
)

// Resource codes.
const (
	CodeServerNotFound     = "SERVER_NOT_FOUND"
	CodeDomainNotFound     = "DOMAIN_NOT_FOUND"
	CodeGroupNotFound      = "GROUP_NOT_FOUND"
	CodeAssignmentNotFound = "ASSIGNMENT_NOT_FOUND"
	CodeNameTaken          = "NAME_ALREADY_TAKEN"
)

// Store codes.
const (
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Validation codes.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
)

// Auth codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Convenience constructors using predefined codes.

// ErrDomainAlreadyAssigned reports a domain that already has an active assignment.
func ErrDomainAlreadyAssigned(domainID int64) *AppError {
	return Conflict(CodeDomainAlreadyAssigned, "domain is already assigned to a server").
		WithParams(map[string]interface{}{"domain_id": domainID})
}

// ErrServerAtCapacity reports a server with no remaining slots.
func ErrServerAtCapacity(serverID int64) *AppError {
	return Conflict(CodeServerAtCapacity, "server has no remaining domain slots").
		WithParams(map[string]interface{}{"server_id": serverID})
}

// ErrCapacityViolation reports a change that would break current <= max.
func ErrCapacityViolation(current, newMax int) *AppError {
	return Conflict(CodeCapacityViolation, "capacity mode change would drop max below current assignments").
		WithParams(map[string]interface{}{"current_domains": current, "new_max_domains": newMax})
}

// ErrLockHeld reports a resource locked by another principal.
func ErrLockHeld(holder string) *AppError {
	return Conflict(CodeLockHeld, "resource is locked by another operator").
		WithParams(map[string]interface{}{"by": holder})
}

// ErrReferentialConflict reports a delete blocked by live references.
func ErrReferentialConflict(message string) *AppError {
	return Conflict(CodeReferentialConflict, message)
}

// ErrStoreUnavailable reports a transaction that failed after retry.
func ErrStoreUnavailable(err error) *AppError {
	return Wrap(err, CodeStoreUnavailable, "backing store is unavailable", http.StatusServiceUnavailable)
}
