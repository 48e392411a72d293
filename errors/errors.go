package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Code classifies an Error
type Code int

const (
	Internal   Code = http.StatusInternalServerError
	NotFound   Code = http.StatusNotFound
	Validation Code = http.StatusBadRequest
	// Backend marks a storage or network failure reported by a backend
	Backend Code = http.StatusBadGateway
	// Connection marks a failure to establish a backend connection
	Connection Code = http.StatusServiceUnavailable
)

// Error is a custom error
type Error struct {
	Code Code `json:"code"`
	// Field is the descriptor field that failed validation, if any
	Field    string   `json:"field,omitempty"`
	Messages []string `json:"messages"`
	Err      error    `json:"err,omitempty"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	if e.Code == 0 {
		e.Code = Internal
	}
	type plain struct {
		Code     Code     `json:"code"`
		Field    string   `json:"field,omitempty"`
		Messages []string `json:"messages"`
		Err      string   `json:"err,omitempty"`
	}
	p := plain{Code: e.Code, Field: e.Field, Messages: e.Messages}
	if e.Err != nil {
		p.Err = e.Err.Error()
	}
	bits, _ := json.Marshal(p)
	return string(bits)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// RemoveError removes the error from the Error and leaves it's messages and code
func (e *Error) RemoveError() *Error {
	return &Error{
		Code:     e.Code,
		Field:    e.Field,
		Messages: e.Messages,
		Err:      nil,
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	e, ok := err.(*Error)
	if !ok {
		return &Error{
			Code:     0,
			Messages: nil,
			Err:      err,
		}
	}
	return e
}

// New creates a new error with the given code and message
func New(code Code, msg string, args ...any) error {
	return &Error{
		Code:     code,
		Messages: []string{fmt.Sprintf(msg, args...)},
	}
}

// Validationf creates a validation error against the given descriptor field
func Validationf(field string, reason string, args ...any) error {
	return &Error{
		Code:     Validation,
		Field:    field,
		Messages: []string{fmt.Sprintf(reason, args...)},
	}
}

// Wrap wraps the given error and returns a new one. Wrapping a nil error returns nil.
func Wrap(err error, code Code, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if ok {
		if msg != "" {
			e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
		}
		if code > 0 {
			e.Code = code
		}
		return e
	}
	e = &Error{
		Code: code,
		Err:  err,
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}

// Is reports whether err is an Error with the given code
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*Error)
	return ok && e.Code == code
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return Is(err, Validation) }

// IsBackend reports whether err is a backend error
func IsBackend(err error) bool { return Is(err, Backend) }

// IsConnection reports whether err is a connection error
func IsConnection(err error) bool { return Is(err, Connection) }
