package errors

import "net/http"

var ErrPermissionDenied = &Exception{
	Message:    "admin rights required",
	StatusCode: http.StatusForbidden,
}
