package web

// errors.go turns errors into JSON error responses.
//
// Every error is logged server-side with its technical detail and the
// request id, and the client receives the catalogue message from
// core.MapError with its support code:
//
//	{"error": "...", "message": "...", "action": "...", "code": "FILE001"}
//
// The code is repeated in the X-Error-Code header so clients can branch on
// it without parsing the body.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/logging"
)

// ErrorResponse is the JSON body of every non-envelope error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message with statusCode.
// Service errors arrive as *core.UserError; anything else is mapped here.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	var ue *core.UserError
	if !errors.As(err, &ue) {
		ue = core.NewUserError(err)
	}
	userMsg := ue.User
	technical := ue.Technical.Error()

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", technical,
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	// Server faults and unrecognized errors can carry paths and driver
	// detail; clients get the catalogue text only.
	detail := technical
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(ue) {
		detail = userMsg.Message
	}

	w.Header().Set("X-Error-Code", userMsg.Code)
	writeJSON(w, statusCode, ErrorResponse{
		Error:   detail,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
