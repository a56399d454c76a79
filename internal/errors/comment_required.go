package errors

import "net/http"

var ErrCommentRequired = &Exception{
	Message:    "a comment is required to submit a task",
	StatusCode: http.StatusBadRequest,
}
