package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/campushq/placemate/internal/chat"
	"github.com/campushq/placemate/internal/embed"
	"github.com/campushq/placemate/internal/gateway"
	"github.com/campushq/placemate/internal/store"
)

// WriteJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding. This allows returning a proper 500 error if JSON encoding fails.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("failed to write response body", "error", err)
	}
}

// errorBody is the uniform error envelope for all non-2xx responses.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteError writes a JSON error response with a stable machine-readable code.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", code, "message", message)
	}
	WriteJSON(w, status, body)
}

// domainStatus maps a pipeline error to its HTTP status, machine-readable
// code, and message. Unknown errors map to a generic 500.
func domainStatus(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, "invalid_message", "message must not be empty"
	case errors.Is(err, embed.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable", "embedding provider unavailable"
	case errors.Is(err, gateway.ErrGenerationFailed):
		return http.StatusBadGateway, "generation_failed", "model generation failed"
	case errors.Is(err, store.ErrStorageFailed):
		return http.StatusInternalServerError, "storage_failed", "storage operation failed"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

// writeDomainError maps pipeline errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, code, message := domainStatus(err)
	if code == "internal_error" {
		logger.Error("unhandled pipeline error", "error", err)
	}
	WriteError(w, status, code, message, logger)
}
