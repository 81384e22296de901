package supabase

import (
	"errors"
	"fmt"
	"net/http"
)

// StoreError is a non-success response from the store, carrying the status
// code and response body so callers can decide whether to retry, fall back,
// or propagate.
type StoreError struct {
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a store 404
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a store 401
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsConflict reports whether err is a store 409, e.g. a unique constraint hit
// by the coach check-then-act race
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.StatusCode == status
	}
	return false
}
