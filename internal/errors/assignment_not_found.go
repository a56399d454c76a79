package errors

import "net/http"

var ErrAssignmentNotFound = &Exception{
	Message:    "assignment not found",
	StatusCode: http.StatusNotFound,
}
