package peerapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// requestID stamps every inbound request with a uuid, echoed back in the
// X-Request-Id response header and attached to the request's context so
// downstream logging can correlate a request across handlers.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog writes one structured log line per request, in the teacher's
// method/path/duration style.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(map[string]any{
			"requestId": r.Context().Value(requestIDKey{}),
			"method":    r.Method,
			"path":      r.URL.Path,
			"remote":    r.RemoteAddr,
			"duration":  time.Since(start).String(),
		}).Info("peer api request")
	})
}
