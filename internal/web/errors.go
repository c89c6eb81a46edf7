package web

// errors.go provides unified error responses for the API.
//
// Every error is logged with its technical detail and the request id, then
// returned as JSON carrying the user message and support code from
// core.MapError.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/fakedata/internal/core"
	"github.com/JonMunkholm/fakedata/internal/logging"
	"github.com/JonMunkholm/fakedata/internal/store"
	"github.com/JonMunkholm/fakedata/internal/textreader"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// clientDetail returns the technical message for errors that describe the
// request or the resource content. Anything else stays in the server log.
func clientDetail(err error) string {
	var readErr *textreader.ReadError
	switch {
	case errors.As(err, &readErr),
		errors.Is(err, textreader.ErrAccess),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrUnknownResource):
		return err.Error()
	}
	return ""
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownResource),
		errors.Is(err, textreader.ErrResourceNotFound),
		errors.Is(err, textreader.ErrAccess):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrExportDisabled),
		errors.Is(err, core.ErrTooManyExports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError responds with the status chosen by statusFor.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, statusFor(err))
}

// respondError logs err and writes the mapped user message as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable && errors.Is(err, core.ErrTooManyExports) {
		w.Header().Set("Retry-After", "10")
	}

	writeJSON(w, r, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Detail:  clientDetail(err),
	})
}
