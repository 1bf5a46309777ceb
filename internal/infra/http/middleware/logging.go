package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/xavierca1/zag-leads/internal/infra/logger"
)

// RequestLogger logs every request with its latency. It also copies chi's
// request id into the context key the logger reads.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			if id := chimw.GetReqID(r.Context()); id != "" {
				r = r.WithContext(context.WithValue(r.Context(), logger.RequestIDKey, id))
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.WithContext(r.Context()).HTTPRequest(r.Method, r.URL.Path, status, float64(time.Since(start).Milliseconds()), ClientIP(r))
		})
	}
}
