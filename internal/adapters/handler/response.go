// Package handler implements HTTP request handlers
// Following Hexagonal Architecture: Adapters translate HTTP to domain logic
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// APIResponse represents the standard response envelope
type APIResponse struct {
	Code    int    `json:"code"`               // HTTP status code (200, 400, 500, etc.)
	Message string `json:"message"`            // Human-readable message ("Success", error description)
	Data    any    `json:"data"`               // Actual payload (can be null)
	TraceID string `json:"trace_id,omitempty"` // Request correlation id
}

// NewSuccessResponse creates a successful response (code 200)
func NewSuccessResponse(data any) APIResponse {
	return APIResponse{
		Code:    http.StatusOK,
		Message: "Success",
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code int, message string) APIResponse {
	return APIResponse{
		Code:    code,
		Message: message,
		Data:    nil,
	}
}

// Common error responses
func BadRequestResponse(message string) APIResponse {
	return NewErrorResponse(http.StatusBadRequest, message)
}

func NotFoundResponse(message string) APIResponse {
	return NewErrorResponse(http.StatusNotFound, message)
}

func InternalErrorResponse(message string) APIResponse {
	return NewErrorResponse(http.StatusInternalServerError, message)
}

// writeAPI writes an envelope stamped with the request trace id
func writeAPI(w http.ResponseWriter, r *http.Request, resp APIResponse) {
	resp.TraceID = TraceIDFromContext(r.Context())
	writeJSON(w, resp.Code, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ============================================================================
// Trace ID middleware
// ============================================================================

type traceIDKey struct{}

// TraceIDHeader carries the request correlation id in both directions
const TraceIDHeader = "X-Trace-ID"

// TraceID reuses an incoming X-Trace-ID or generates a new UUID
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TraceIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(TraceIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceIDKey{}, id)))
	})
}

// TraceIDFromContext returns the request trace id, empty outside the middleware
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
