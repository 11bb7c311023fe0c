package fetch

import "net/http"

// StatusError is a download failure that knows which HTTP status the API
// should answer with.
type StatusError struct {
	Code    int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *StatusError) Unwrap() error { return e.Err }

// IsClientError reports whether the failure is the caller's fault (4xx).
func (e *StatusError) IsClientError() bool {
	return e.Code >= 400 && e.Code < 500
}

func badRequest(msg string, err error) *StatusError {
	return &StatusError{Code: http.StatusBadRequest, Message: msg, Err: err}
}

func notFound(msg string, err error) *StatusError {
	return &StatusError{Code: http.StatusNotFound, Message: msg, Err: err}
}

func internal(msg string, err error) *StatusError {
	return &StatusError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}
