package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource already exists")
	ErrBadRequest = errors.New("bad request")

	// Rate limiting errors
	ErrStoreUnavailable       = errors.New("attempt store unavailable")
	ErrPolicyMisconfiguration = errors.New("rate limit policy misconfigured")
)
