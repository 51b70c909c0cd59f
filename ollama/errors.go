package ollama

import (
	"errors"
	"fmt"
)

type ErrorType int

const (
	ErrTypeConnection ErrorType = iota
	ErrTypeTimeout
	ErrTypeServer
	ErrTypeModelNotFound
	ErrTypeParse
)

// ClientError wraps a request failure with enough shape for callers to react
// without string matching.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

func newClientError(t ErrorType, message string, cause error) *ClientError {
	return &ClientError{Type: t, Message: message, Cause: cause}
}

// IsNotRunning reports whether err means the server could not be reached.
func IsNotRunning(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeConnection
}

// IsModelNotFound reports whether err means the requested model is not
// installed on the server.
func IsModelNotFound(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeModelNotFound
}

func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeTimeout
}

// ServerError is the JSON error body the server returns on non-2xx statuses.
type ServerError struct {
	Err string `json:"error"`
}

func (e *ServerError) Error() string {
	return e.Err
}
