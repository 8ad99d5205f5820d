package database

import "errors"

var (
	// ErrNotFound reports an unknown appointment, request, block or template.
	ErrNotFound = errors.New("not found")

	// ErrConflictDetected reports an interval overlap against confirmed
	// state. Callers should treat it as a business-rule rejection that is
	// retryable with a different interval.
	ErrConflictDetected = errors.New("conflicting appointment or block")

	// ErrAlreadyResolved reports an operation on an appointment or request
	// whose lifecycle already ended.
	ErrAlreadyResolved = errors.New("already resolved")

	// ErrTransactionAborted reports a concurrent conflicting write detected
	// by the store. It is retryable; exhausted retries are reclassified as
	// ErrConflictDetected by the scheduling layer.
	ErrTransactionAborted = errors.New("transaction aborted by concurrent write")

	// ErrInvalidInterval reports a malformed interval before any store access.
	ErrInvalidInterval = errors.New("invalid interval: start must be before end")

	// ErrInvalidTemplate reports an availability template violating its
	// invariants. Professional-side fix required.
	ErrInvalidTemplate = errors.New("invalid availability template")

	// ErrNotConfigured reports a professional without an availability
	// template.
	ErrNotConfigured = errors.New("availability not configured")

	// ErrPendingReschedule reports a second reschedule proposal while one is
	// still pending.
	ErrPendingReschedule = errors.New("a reschedule request is already pending")
)
