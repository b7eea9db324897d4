// Errors raised by the mdclient library.
//
// Each kind of failure has its own type and a sentinel,
// so callers can write either
//
//	errors.Is(err, mderr.ErrRemoteCall)
//
// or
//
//	var rce *mderr.RemoteCallError
//	if errors.As(err, &rce) { ... rce.StatusCode ... }
package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// caller input is malformed. Detected before any network call.
	ErrValidation = errors.New("validation error")

	// a local file referenced by the caller does not exist.
	ErrNotFound = errors.New("not found")

	// the server responded with a status code out of the success codes of the operation.
	ErrRemoteCall = errors.New("remote call failed")

	// polling has not observed terminal state in time.
	ErrTimeout = errors.New("timeout")

	// a polled resource has reached terminal failure state.
	ErrRemoteFailure = errors.New("remote resource failed")

	// no dataset looks like the initial dataset of the experiment.
	ErrNoInitialDataset = errors.New("initial dataset not found")

	// two or more datasets look like the initial dataset of the experiment.
	ErrAmbiguousInitialDataset = errors.New("initial dataset is ambiguous")
)

type ValidationError struct {
	// name of the field found invalid
	Field string

	// why the field is invalid
	Reason string
}

func NewValidationError(field string, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type NotFoundError struct {
	Path string
}

func NewNotFoundError(path string) *NotFoundError {
	return &NotFoundError{Path: path}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// RemoteCallError is an HTTP response out of the success codes of an operation.
//
// Body is the response body as is, for diagnostics.
type RemoteCallError struct {
	// what the client tried to do (e.g. "create experiment")
	Operation  string
	StatusCode int
	Body       string
}

func NewRemoteCallError(operation string, statusCode int, body string) *RemoteCallError {
	return &RemoteCallError{Operation: operation, StatusCode: statusCode, Body: body}
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("failed to %s: %d - %s", e.Operation, e.StatusCode, e.Body)
}

func (e *RemoteCallError) Is(target error) bool {
	return target == ErrRemoteCall
}

// TimeoutError is returned when a polled resource has not reached terminal state in time.
type TimeoutError struct {
	// "experiment" or "dataset"
	Resource string
	Id       string

	// status (or state) observed at last. Empty if it has never been observed.
	LastStatus string

	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	last := e.LastStatus
	if last == "" {
		last = "(not observed)"
	}
	return fmt.Sprintf(
		"%s: %s %s did not complete within %s (last status: %s)",
		ErrTimeout, e.Resource, e.Id, e.Timeout, last,
	)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// RemoteFailureError is returned when a polled resource has reached FAILED, ERROR or CANCELLED.
type RemoteFailureError struct {
	Resource string
	Id       string
	Status   string
}

func (e *RemoteFailureError) Error() string {
	return fmt.Sprintf("%s %s finished with status %s", e.Resource, e.Id, e.Status)
}

func (e *RemoteFailureError) Is(target error) bool {
	return target == ErrRemoteFailure
}
