package model

import (
	"errors"
	"fmt"
)

// Error kinds shared by adapters, cache and orchestrator
var (
	ErrTransient          = errors.New("transient source failure")
	ErrFormat             = errors.New("malformed source response")
	ErrCacheUnavailable   = errors.New("cache unavailable")
	ErrAllSourcesFailed   = errors.New("all sources failed and no cached results")
	ErrMissingCredentials = errors.New("missing credentials")
)

// AdapterError wraps a failure from one adapter with its kind
type AdapterError struct {
	Adapter  string
	Kind     error
	Attempts int
	Err      error
}

func (e *AdapterError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s: %v after %d attempts: %v", e.Adapter, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Adapter, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Is matches the error kind so callers can use errors.Is(err, ErrFormat)
func (e *AdapterError) Is(target error) bool {
	return e.Kind == target
}

// NewFormatError builds a format error for an adapter
func NewFormatError(adapter string, err error) error {
	return &AdapterError{Adapter: adapter, Kind: ErrFormat, Attempts: 1, Err: err}
}

// IsTransient reports whether err is a retry-worthy failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
