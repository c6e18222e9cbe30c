package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "repoharvest/internal/platform/errors"
)

// Envelope is the standard response body for all endpoints
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// JSON writes v as application/json with the given status
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Response is a functional response object for return-style handlers
type Response struct {
	Status int
	Body   any
}

// Handle adapts a Response-returning handler to net/http
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		h(r).write(w)
	}
}

func (resp Response) write(w stdhttp.ResponseWriter) {
	if err, ok := resp.Body.(error); ok && err != nil {
		status := perr.HTTPStatusCode(perr.CodeOf(err))
		wr := perr.WireFrom(err)
		JSON(w, status, Envelope{
			StatusCode: status,
			Status:     stdhttp.StatusText(status),
			Code:       wr.Code,
			Error:      wr.Message,
		})
		return
	}
	status := resp.Status
	if status == 0 {
		status = stdhttp.StatusOK
	}
	JSON(w, status, Envelope{
		StatusCode: status,
		Status:     stdhttp.StatusText(status),
		Data:       resp.Body,
	})
}

// OK returns a 200 response
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Error returns a response that maps the error to status and envelope
func Error(err error) Response { return Response{Body: err} }

// GetJSON mounts a pure JSON handler for GET
func GetJSON(r Router, path string, h func(*stdhttp.Request) (any, error)) {
	r.Get(path, Handle(func(req *stdhttp.Request) Response {
		out, err := h(req)
		if err != nil {
			return Error(err)
		}
		return OK(out)
	}))
}
