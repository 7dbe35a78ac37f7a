package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoSession indicates an operation that requires an
	// authenticated user was invoked without one.
	ErrNoSession = errors.New("no active session")

	// ErrOwnBusinessLike indicates a user tried to like their own
	// business. The operation is a no-op.
	ErrOwnBusinessLike = errors.New("cannot like your own business")

	// ErrLikeThrottled indicates a guest already liked this business
	// within the last 24 hours.
	ErrLikeThrottled = errors.New("business already liked in the last 24 hours")

	// ErrForbidden indicates the current user lacks the role or
	// ownership the operation requires.
	ErrForbidden = errors.New("operation not allowed for this user")
)
