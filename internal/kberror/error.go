package kberror

import (
	"fmt"
	"net/http"
)

// Error tags.
const (
	TagMissingField   = "missing-field"
	TagInvalidShortID = "invalid-short-id"
	TagNotFound       = "not-found"
	TagInvalidBody    = "invalid-body"
)

type (
	// A KBError represents the error format that can be rendered by kasblog server.
	KBError struct {
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
	if kberr, ok := err.(*KBError); ok && kberr.HTTPCode != 0 {
		return kberr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new KBError with the given message.
func New(message string) *KBError {
	return &KBError{FieldError: err{Message: message}}
}

// NewWithTagCode returns a new KBError with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *KBError {
	return &KBError{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// MissingField returns a 400 error for a required field.
func MissingField(name string) *KBError {
	return NewWithTagCode(http.StatusBadRequest, TagMissingField, fmt.Sprintf("Missing required field: %s", name))
}

// InvalidShortID returns a 400 error for a malformed short id.
func InvalidShortID() *KBError {
	return NewWithTagCode(http.StatusBadRequest, TagInvalidShortID, "Invalid short ID format")
}

// NotFound returns a 404 error for an unknown or expired short URL.
func NotFound() *KBError {
	return NewWithTagCode(http.StatusNotFound, TagNotFound, "Short URL not found or expired")
}

// Error implements error interface.
func (e *KBError) Error() string {
	return e.FieldError.Message
}

// Tag returns the error tag.
func (e *KBError) Tag() string {
	return e.FieldError.Tag
}
