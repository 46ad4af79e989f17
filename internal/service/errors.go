package service

import (
	"errors"

	"github.com/Skotchmaster/marketplace/internal/storage"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUniqueness         = errors.New("username or email already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("not authorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidFileType    = storage.ErrInvalidFileType
)

// ValidationError carries the message to show next to the redisplayed form.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(err error) error {
	return &ValidationError{Message: err.Error(), Err: err}
}
