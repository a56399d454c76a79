package errors

import "net/http"

var ErrTaskAlreadyTaken = &Exception{
	Message:    "task already taken",
	StatusCode: http.StatusConflict,
}
