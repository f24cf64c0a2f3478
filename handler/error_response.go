package handler

import "net/http"

type errorResponse struct {
	err error
}

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.err
}

// Error defers err to the wrapped handler's ErrorHandler, which classifies,
// logs and renders it.
func Error(err error) Response {
	return errorResponse{err: err}
}
