package errors

import "errors"

var (
	ErrValidation          = errors.New("delegation input is invalid")
	ErrInvalidTransition   = errors.New("delegation status transition is not allowed")
	ErrUnauthorized        = errors.New("actor lacks the required capability")
	ErrChainIntegrity      = errors.New("delegation audit chain integrity is broken")
	ErrConcurrencyConflict = errors.New("delegation chain tip changed concurrently")
	ErrNotFound            = errors.New("delegation not found")
)
