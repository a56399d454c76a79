package errors

import "net/http"

var ErrInvalidDeadline = &Exception{
	Message:    "deadline could not be parsed or is in the past",
	StatusCode: http.StatusBadRequest,
}
