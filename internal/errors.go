package internal

import (
	"errors"
	"net/http"
)

// Boot and registration errors.
var (
	ErrNoControllers  = errors.New("no controllers were registered: ensure your controller types are registered")
	ErrInvalidRoute   = errors.New("forgeioc: invalid route")
	ErrInvalidParams  = errors.New("forgeioc: unsupported handler parameters")
	ErrInvalidScope   = errors.New("forgeioc: invalid controller scope")
	ErrDuplicateRoute = errors.New("forgeioc: duplicate route")
	ErrAppStopping    = errors.New("forgeioc: application is shutting down")
)

// HTTPError is an error carrying an HTTP status code. The default error
// handler renders it as {"detail": Message} with Code.
type HTTPError struct {
	Err     error  // underlying cause, logged but not rendered
	Message string // user-facing message
	Code    int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int {
	return e.Code
}

// NewHTTPError creates an HTTPError. An empty message defaults to the status text.
func NewHTTPError(code int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	return &HTTPError{Code: code, Message: message}
}

// WithCause attaches an underlying error.
func (e *HTTPError) WithCause(err error) *HTTPError {
	e.Err = err
	return e
}

func ErrBadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message)
}

func ErrUnauthorized(message string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message)
}

func ErrForbidden(message string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, message)
}

func ErrNotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message)
}

func ErrConflict(message string) *HTTPError {
	return NewHTTPError(http.StatusConflict, message)
}

func ErrUnprocessable(message string) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, message)
}

func ErrInternal(message string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message)
}

func ErrServiceUnavailable(message string) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message)
}

// AsHTTPError returns the first HTTPError in err's chain, or nil.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}
