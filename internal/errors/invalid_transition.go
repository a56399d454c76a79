package errors

import "net/http"

var ErrInvalidTransition = &Exception{
	Message:    "action not allowed in the current task state",
	StatusCode: http.StatusUnprocessableEntity,
}
