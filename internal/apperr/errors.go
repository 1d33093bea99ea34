// Package apperr defines sentinel errors shared across the application layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrRunBusy  = errors.New("harvest run already in progress")
)
