package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bryanwahyu/clause-review/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID middleware generates a unique request ID for each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID gets the request ID from the request context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
