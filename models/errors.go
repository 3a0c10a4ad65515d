package models

import "fmt"

// InvalidCriteriaError rejects a malformed search request before any I/O.
type InvalidCriteriaError struct {
	Field  string
	Reason string
}

func (e *InvalidCriteriaError) Error() string {
	return fmt.Sprintf("invalid criteria: %s: %s", e.Field, e.Reason)
}

// CacheUnavailableError wraps a persistence failure. Callers treat it as a
// cache miss plus inability to persist, never as a fatal abort.
type CacheUnavailableError struct {
	Op  string
	Err error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("cache unavailable: %s: %v", e.Op, e.Err)
}

func (e *CacheUnavailableError) Unwrap() error {
	return e.Err
}

// FetchError wraps an upstream portal failure. It propagates to the caller
// only when no stale cache entry exists to fall back on.
type FetchError struct {
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed at %s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
