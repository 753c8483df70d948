package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrAlreadyExists           = errors.New("already exists")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInvalidPrice            = errors.New("price must be greater than 0")
	ErrInvalidExpiration       = errors.New("unknown expiration option")
	ErrInvalidTransition       = errors.New("invalid wizard transition")
	ErrSubmissionInFlight      = errors.New("listing submission in flight")
	ErrCollaboratorUnavailable = errors.New("contract collaborator unavailable")
	ErrTxReverted              = errors.New("transaction reverted")
	ErrSigningFailed           = errors.New("signing failed")
	ErrLockHeld                = errors.New("lock already held")
	ErrUnknown                 = errors.New("an unknown error occurred")
)
