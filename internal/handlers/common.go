package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"memevault-backend/internal/middleware"
	"memevault-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

var kindStatus = map[services.Kind]int{
	services.KindNotFound:     http.StatusNotFound,
	services.KindInvalidState: http.StatusBadRequest,
	services.KindDuplicate:    http.StatusBadRequest,
	services.KindValidation:   http.StatusBadRequest,
	services.KindUnauthorized: http.StatusUnauthorized,
	services.KindForbidden:    http.StatusForbidden,
	services.KindStorage:      http.StatusInternalServerError,
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondServiceError maps a service error to its status. Storage failures
// are logged with fields and answered with a generic message.
func respondServiceError(w http.ResponseWriter, err error, fields map[string]any) {
	svcErr := services.AsError(err)
	status, ok := kindStatus[svcErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		log.Error().Fields(fields).Err(err).Msg(svcErr.Message)
		respondJSON(w, status, ErrorResponse{Error: "Internal server error", Code: string(svcErr.Kind)})
		return
	}
	log.Debug().Fields(fields).Str("code", string(svcErr.Kind)).Msg(svcErr.Message)
	respondJSON(w, status, ErrorResponse{Error: svcErr.Message, Code: string(svcErr.Kind), Field: svcErr.Field})
}

// decodeJSON reads the request body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// requestMeta captures the caller's origin for auditing
func requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// queryInt parses an integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}
