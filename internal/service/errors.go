package service

import (
	"errors"
	"fmt"
)

// Outcomes surfaced to API callers
var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrFrequencyLimited = errors.New("comment too fast")
	ErrDuplicateContent = errors.New("duplicate content")
	ErrUpstream         = errors.New("upstream failure")
	ErrNotFound         = errors.New("not found")
	ErrUserRegistered   = errors.New("user registered")
	ErrTokenExpired     = errors.New("token expired")
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// upstream wraps a store or remote service failure
func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
