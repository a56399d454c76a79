package errors

import "net/http"

var ErrDeadlineRequired = &Exception{
	Message:    "a new deadline is required",
	StatusCode: http.StatusBadRequest,
}
