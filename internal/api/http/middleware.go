// Package http provides the HTTP API for the Plotforge service.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	perrors "github.com/plotforge/plotforge/internal/errors"
)

// contextKey scopes request metadata keys to this package.
type contextKey string

// requestIDKey is the context key for the request ID.
const requestIDKey contextKey = "request_id"

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// RequestIDMiddleware assigns each request a unique ID, honoring one the
// client already carries.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RecoveryMiddleware recovers from handler panics and returns a 500.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := GetRequestID(r.Context())
				log.Printf("[ERROR] api: panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeErrorMessage(w, http.StatusInternalServerError, "internal server error", "", requestID)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs one line per request with status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("[INFO] api: %s %s -> %d (%s)", r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Millisecond))
	})
}

// statusWriter captures the response status for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ContentTypeMiddleware sets the JSON content type for API responses.
// Handlers serving non-JSON bodies (figure export) override it.
func ContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ChainMiddleware chains middleware so the first listed runs outermost.
func ChainMiddleware(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// DefaultMiddleware returns the standard API middleware chain.
func DefaultMiddleware() func(http.Handler) http.Handler {
	return ChainMiddleware(
		RecoveryMiddleware,
		RequestIDMiddleware,
		LoggingMiddleware,
		ContentTypeMiddleware,
	)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// statusForError maps an error to an HTTP status code. Structured errors
// map by category; anything unrecognized is a 500.
func statusForError(err error) int {
	var pe *perrors.PlotforgeError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Category {
	case perrors.ErrCategoryValidation:
		if pe.Code == perrors.CodeUploadTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case perrors.ErrCategoryNotFound:
		return http.StatusNotFound
	case perrors.ErrCategoryConflict:
		return http.StatusConflict
	case perrors.ErrCategoryInsights:
		switch pe.Code {
		case perrors.CodeInsightsRateLimited:
			return http.StatusTooManyRequests
		case perrors.CodeInsightsAuth:
			return http.StatusBadGateway
		default:
			return http.StatusServiceUnavailable
		}
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error response. Internal errors are
// logged with their cause and reported to the client without it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())
	status := statusForError(err)

	var pe *perrors.PlotforgeError
	if errors.As(err, &pe) {
		if status >= http.StatusInternalServerError {
			log.Printf("[ERROR] api: %s %s: %v", r.Method, r.URL.Path, err)
			writeErrorMessage(w, status, pe.Message, pe.Code, requestID)
			return
		}
		writeJSON(w, status, ErrorResponse{
			Error:     pe.Message,
			Code:      pe.Code,
			Details:   pe.Details,
			RequestID: requestID,
		})
		return
	}

	log.Printf("[ERROR] api: %s %s: %v", r.Method, r.URL.Path, err)
	writeErrorMessage(w, status, "internal server error", "", requestID)
}

// writeErrorMessage writes a bare error body without a details map.
func writeErrorMessage(w http.ResponseWriter, status int, message, code, requestID string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, RequestID: requestID})
}

// writeJSON writes data as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
