package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

// requestIDKey is the context key the request ID middleware stores its
// value under.
const requestIDKey contextKey = "request_id"

// requestIDHeader is read from the incoming request when the client
// already carries an ID, and always set on the response.
const requestIDHeader = "X-Request-ID"

// RequestID tags every request with a UUID, reusing the client's own
// X-Request-ID header when present. The ID doubles as the connection ID
// in bridge logs, so one websocket session can be followed from the
// upgrade request through to its close.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}

			ctx := context.WithValue(r.Context(), requestIDKey, id)
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID stored by RequestID, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
