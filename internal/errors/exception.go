package errors

import (
	"errors"
	"net/http"
)

// Exception is a caller-visible error carrying the HTTP status the transport
// layer should answer with. Lifecycle transitions recover every Exception at
// the boundary; anything else surfaces as a 500.
type Exception struct {
	Message    string
	StatusCode int
}

func (e *Exception) Error() string {
	return e.Message
}

func StatusCode(err error) int {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserFacing reports whether err carries a status meant for the end user
// rather than an internal failure.
func IsUserFacing(err error) bool {
	var appErr *Exception
	return errors.As(err, &appErr)
}
