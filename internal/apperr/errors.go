// Package apperr holds the sentinel errors shared across playtrace packages.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoActiveKey     = errors.New("no active note key")
	ErrMalformedImport = errors.New("malformed import file")
	ErrUnknownGame     = errors.New("unknown game")
	ErrFactoryMissing  = errors.New("window factory not registered")
)
