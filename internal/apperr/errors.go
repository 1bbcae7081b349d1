package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden means the caller is known but may not perform the operation.
var ErrForbidden = errors.New("forbidden")

// ErrUnauthorized means the caller identity is missing or could not be verified.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInvalidTransition is returned for a status change outside the delivery lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrConflict indicates a concurrent state change or a capacity conflict (HTTP 409).
var ErrConflict = errors.New("conflict")
