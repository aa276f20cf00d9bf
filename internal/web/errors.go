package web

// errors.go turns handler errors into JSON responses. The technical error
// is logged with the request id; the client gets the mapped user message
// and its code.

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/patients/internal/core"
	"github.com/JonMunkholm/patients/internal/logging"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

// badRequest wraps a decoding problem so it maps to 400.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrMissingField),
		errors.Is(err, core.ErrInvalidFieldValue),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrEmptyUpdate),
		errors.Is(err, core.ErrInvalidCSV),
		errors.Is(err, core.ErrMissingColumns):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateIdentifier),
		errors.Is(err, core.ErrLoadInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// userMessage maps err, covering the web-local request errors.
func userMessage(err error) core.UserMessage {
	if errors.Is(err, errBadRequest) {
		return core.UserMessage{
			Message: "Malformed request",
			Detail:  err.Error(),
			Action:  "Check the request body and parameters",
			Code:    "REQ001",
		}
	}
	return core.MapError(err)
}

// respondError logs err and writes its JSON error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := userMessage(err)

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
		logger.Info("request rejected", attrs...)
	}

	if core.IsRetryable(err) && status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Detail:  msg.Detail,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
