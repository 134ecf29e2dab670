// Package apperr holds the sentinel errors shared by the service and its transports.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrIndexNotBuilt = errors.New("index not built")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)
