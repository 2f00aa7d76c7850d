package apperrors

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	ErrAmbiguousMatch  = errors.New("ambiguous match")
	ErrNotRunning      = errors.New("event loop is not running")
)
