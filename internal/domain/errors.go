package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnavailable   = errors.New("upstream unavailable")
	ErrLockHeld      = errors.New("lock already held")
)
