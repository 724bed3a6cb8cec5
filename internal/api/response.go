package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TokenErrorResponse is the body of a 401 written by the bearer guard.
type TokenErrorResponse struct {
	Error TokenErrorDetail `json:"error"`
}

type TokenErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   TokenErrorReasons `json:"details"`
	Path      string            `json:"path"`
	Timestamp string            `json:"timestamp"`
}

type TokenErrorReasons struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type tokenFailure struct {
	message    string
	reason     string
	suggestion string
}

var tokenFailures = map[string]tokenFailure{
	constants.ErrCodeTokenMissing: {
		message:    "Authentication required. No access token provided.",
		reason:     "Missing Authorization header",
		suggestion: `Include "Authorization: Bearer <your-token>" in the request headers`,
	},
	constants.ErrCodeTokenMalformed: {
		message:    "Invalid authentication format. Token must be provided as Bearer token.",
		reason:     "Invalid Authorization header format",
		suggestion: `Use format "Authorization: Bearer <your-token>"`,
	},
	constants.ErrCodeTokenExpired: {
		message:    "Access token has expired. Please refresh your token or login again.",
		reason:     "Token expired",
		suggestion: "Use the refresh token endpoint or login again to get a new access token",
	},
	constants.ErrCodeTokenSignatureInvalid: {
		message:    "Invalid access token format or signature.",
		reason:     "Malformed or invalid JWT token",
		suggestion: "Ensure you are using a valid JWT token obtained from the login endpoint",
	},
	constants.ErrCodeTokenNotActive: {
		message:    "Access token is not active yet.",
		reason:     "Token used before its activation time",
		suggestion: "Wait until the token becomes active or obtain a new token",
	},
	constants.ErrCodeTokenValidationFailed: {
		message:    "Authentication failed. Invalid or malformed access token.",
		reason:     "Token validation failed",
		suggestion: "Verify your token is correct and obtained from the login endpoint",
	},
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// writeServiceError maps an auth.Service error onto its HTTP status and code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string

	switch auth.KindOf(err) {
	case auth.KindInvalidCredentials:
		status, code = http.StatusUnauthorized, constants.ErrCodeInvalidCredentials
	case auth.KindAccountNotActive:
		status, code = http.StatusUnauthorized, constants.ErrCodeAccountNotActive
	case auth.KindTokenInvalid:
		status, code = http.StatusUnauthorized, constants.ErrCodeTokenInvalid
	case auth.KindResourceNotFound:
		status, code = http.StatusConflict, constants.ErrCodeResourceNotFound
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		internalError(w)
		return
	}

	slog.Debug("request rejected", "path", r.URL.Path, "code", code, "error", err)
	writeError(w, status, code, auth.PublicMessage(err))
}

func writeTokenError(w http.ResponseWriter, r *http.Request, code string) {
	failure, ok := tokenFailures[code]
	if !ok {
		code = constants.ErrCodeTokenValidationFailed
		failure = tokenFailures[code]
	}

	writeJSON(w, http.StatusUnauthorized, TokenErrorResponse{
		Error: TokenErrorDetail{
			Code:    code,
			Message: failure.message,
			Details: TokenErrorReasons{
				Reason:     failure.reason,
				Suggestion: failure.suggestion,
			},
			Path:      r.URL.Path,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}
