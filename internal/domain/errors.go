package domain

import "errors"

// ErrNotFound is returned when the requested ride or content item does not
// exist in the document store.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the acting user is not the record owner, or
// when nobody is signed in. Owner-gated operations fail with this before any
// write is attempted.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrValidation is returned when input fails a business rule (e.g. missing
// title, photo without a URL). It is raised before any store call.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrSubscriptionFailed is reported when the live feed for a record errors.
// The subscription is torn down and the view is terminal.
var ErrSubscriptionFailed = errors.New("subscription failed")

// ErrWriteFailed wraps a store rejection of a mutation. The store's own error
// stays in the chain so its message reaches the caller unchanged.
var ErrWriteFailed = errors.New("write failed")

// ErrInvalidState is returned when an operation is not allowed in the current
// view state (e.g. commit without an open edit).
// Handlers should map this to HTTP 409 Conflict.
var ErrInvalidState = errors.New("invalid state")

// ErrClosed is returned by operations on a view that has been closed.
var ErrClosed = errors.New("closed")
