package models

import "errors"

var (
	// ErrInsufficientData too few points to compute a result. A valid outcome, not a failure.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrStoreUnavailable the backing store failed; callers fall back to defaults.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidSample a malformed sample; only that sample is skipped.
	ErrInvalidSample = errors.New("invalid sample")
	// ErrPermissionDenied a caregiver lacks the permission for an alert type.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound the requested entity does not exist.
	ErrNotFound = errors.New("not found")
)
