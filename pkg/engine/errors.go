package engine

import (
	"fmt"
	"net/http"
)

// NotFoundError is returned when no record matches the requested id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("resource %q record %q not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("resource %q not found", e.Resource)
}

// StatusCode returns the HTTP status code for this error.
func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// ReadOnlyError is returned when a mutating verb arrives in read-only mode.
type ReadOnlyError struct {
	Method string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("%s rejected: server is read-only", e.Method)
}

// StatusCode returns the HTTP status code for this error.
func (e *ReadOnlyError) StatusCode() int {
	return http.StatusForbidden
}

// MalformedBodyError is returned when a mutation payload cannot be parsed.
type MalformedBodyError struct {
	Err error
}

func (e *MalformedBodyError) Error() string {
	return fmt.Sprintf("malformed request body: %v", e.Err)
}

func (e *MalformedBodyError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code for this error.
func (e *MalformedBodyError) StatusCode() int {
	return http.StatusBadRequest
}

// StatusCodeError is an interface for errors that carry an HTTP status code.
type StatusCodeError interface {
	error
	StatusCode() int
}
