package errutils

import (
	"errors"
	"net/http"
)

// HTTPError is an error that carries an HTTP status code and can be written as a response.
type HTTPError struct {
	// Status is the HTTP status code.
	Status int `json:"-"`
	// Code is the machine-readable error code.
	Code string `json:"code"`
	// Reason is the human-readable cause of the error.
	Reason string `json:"reason,omitempty"`
}

func (h *HTTPError) Error() string {
	if h.Reason == "" {
		return h.Code
	}
	return h.Code + ": " + h.Reason
}

// WithReasonStr returns a copy of the error with the given reason.
func (h *HTTPError) WithReasonStr(reason string) *HTTPError {
	copied := *h
	copied.Reason = reason
	return &copied
}

// WithReasonErr returns a copy of the error with the given error's message as the reason.
func (h *HTTPError) WithReasonErr(err error) *HTTPError {
	return h.WithReasonStr(err.Error())
}

// ToHTTPError converts any error into an HTTPError.
// Errors that are not HTTPErrors are treated as internal server errors.
func ToHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return InternalServerError()
}

func BadRequest() *HTTPError {
	return newHTTPError(http.StatusBadRequest)
}

func Unauthorized() *HTTPError {
	return newHTTPError(http.StatusUnauthorized)
}

func NotFound() *HTTPError {
	return newHTTPError(http.StatusNotFound)
}

func RequestTimeout() *HTTPError {
	return newHTTPError(http.StatusRequestTimeout)
}

func InternalServerError() *HTTPError {
	return newHTTPError(http.StatusInternalServerError)
}

func BadGateway() *HTTPError {
	return newHTTPError(http.StatusBadGateway)
}

func newHTTPError(status int) *HTTPError {
	return &HTTPError{Status: status, Code: http.StatusText(status)}
}
