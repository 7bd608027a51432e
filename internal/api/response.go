package api

import (
	"encoding/json"
	"net/http"
)

// Error codes surfaced to callers. Every failure is shaped as
// {"error": {"code": ..., "message": ...}}.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeMissingFields       = "MISSING_FIELDS"
	CodeInvalidEmail        = "INVALID_EMAIL"
	CodeWeakPassword        = "WEAK_PASSWORD"
	CodeEmailExists         = "EMAIL_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeNoUpdates           = "NO_UPDATES"
	CodeCannotDeleteSelf    = "CANNOT_DELETE_SELF"
	CodeRequestExists       = "REQUEST_EXISTS"
	CodeDeviceRegistered    = "DEVICE_REGISTERED"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyProcessed    = "ALREADY_PROCESSED"
	CodeDeviceTokenRequired = "DEVICE_TOKEN_REQUIRED"
	CodeInvalidDeviceToken  = "INVALID_DEVICE_TOKEN"
	CodeMissingDeviceID     = "MISSING_DEVICE_ID"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInvalidFile         = "INVALID_FILE"
	CodeExpired             = "EXPIRED"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeDatabaseError       = "DATABASE_ERROR"
)

type APIError struct {
	Code    string `json:"code" example:"NOT_FOUND"`
	Message string `json:"message" example:"File not found"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message}})
}
