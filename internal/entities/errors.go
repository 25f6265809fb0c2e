package entities

import "errors"

// Sentinel errors shared across services and repositories. Handlers map
// them to HTTP status codes with errors.Is.
var (
	// ErrNotFound means the referenced order or menu item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict means a conditional update lost to a concurrent
	// writer. Retryable: the caller re-reads and either retries or
	// recognizes the desired state already holds.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidTransition means the requested status change is outside the
	// lifecycle transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSignatureInvalid means an HMAC signature check failed. Never
	// exposed with cryptographic detail.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrItemUnavailable means a cart line references an item that is
	// unknown or currently unavailable.
	ErrItemUnavailable = errors.New("menu item unavailable")

	// ErrDuplicateRequest means an idempotency reservation for the same
	// fingerprint is held by a checkout that has not finished yet.
	ErrDuplicateRequest = errors.New("duplicate request in flight")

	// ErrIdempotencyUnavailable means the idempotency cache could not be
	// reached and the guard is configured to fail closed.
	ErrIdempotencyUnavailable = errors.New("idempotency store unavailable")
)
