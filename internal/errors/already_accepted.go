package errors

import "net/http"

var ErrAlreadyAccepted = &Exception{
	Message:    "assignment already accepted",
	StatusCode: http.StatusConflict,
}
