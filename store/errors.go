package store

import "errors"

// Every error here is user-recoverable: handlers surface them as an
// inline message or an API status and never retry or abort the process.
var (
	ErrDuplicateAccount   = errors.New("account name or login id already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrNotEditable        = errors.New("event owner is not visible to this session")
	ErrValidation         = errors.New("validation failed")
	ErrAlreadyVisible     = errors.New("account is already visible")
	ErrRemoveSelf         = errors.New("own account cannot be removed from visibility")
	ErrCorruptState       = errors.New("corrupt data file")
)
