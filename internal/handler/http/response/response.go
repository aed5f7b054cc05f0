package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func Success(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func SuccessWithMessage(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Rejected reports a refused business action. The request itself was handled, so the status is 200.
func Rejected(w http.ResponseWriter, code, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{
		Success: false,
		Message: message,
		Data:    data,
		Error:   &ErrorDetail{Code: code, Message: message},
	})
}

func fail(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	writeJSON(w, status, Response{
		Success: false,
		Error:   &ErrorDetail{Code: code, Message: message, Details: details},
	})
}

func BadRequest(w http.ResponseWriter, message string, details map[string]string) {
	fail(w, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func BadRequestWithCode(w http.ResponseWriter, code, message string) {
	fail(w, http.StatusBadRequest, code, message, nil)
}

func ValidationError(w http.ResponseWriter, details map[string]string) {
	fail(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", details)
}

// ConfigurationError signals missing or broken school setup that an administrator must fix.
func ConfigurationError(w http.ResponseWriter, message, action string) {
	fail(w, http.StatusInternalServerError, "CONFIGURATION_ERROR", message, map[string]string{"action": action})
}

// InternalError keeps the underlying cause visible to API clients.
func InternalError(w http.ResponseWriter, cause error) {
	fail(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An unexpected error occurred",
		map[string]string{"cause": cause.Error()})
}

func Unauthorized(w http.ResponseWriter, message string) {
	fail(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func Forbidden(w http.ResponseWriter, message string) {
	fail(w, http.StatusForbidden, "FORBIDDEN", message, nil)
}

func NotFound(w http.ResponseWriter, message string) {
	fail(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}
