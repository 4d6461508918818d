package cverror

import "net/http"

type (
	// A CVError represents the error format rendered by the clipvault server.
	CVError struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if cverr, ok := err.(*CVError); ok && cverr.HTTPCode != 0 {
		return cverr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new CVError with the given message.
func New(message string) *CVError {
	return &CVError{FieldError: err{Message: message}}
}

// NewWithTagCode returns a new CVError with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *CVError {
	return &CVError{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// NotFound returns a not-found error. The public share read path funnels
// revoked, expired, exhausted and nonexistent links through this single
// outcome so callers cannot enumerate link states.
func NotFound(message string) *CVError {
	return NewWithTagCode(http.StatusNotFound, "not-found", message)
}

// BadRequest returns a malformed-request error.
func BadRequest(message string) *CVError {
	return NewWithTagCode(http.StatusBadRequest, "bad-request", message)
}

// Unauthorized returns an authorization error.
func Unauthorized(message string) *CVError {
	return NewWithTagCode(http.StatusUnauthorized, "unauthorized", message)
}

// Error implements error interface.
func (e *CVError) Error() string {
	return e.FieldError.Message
}
