package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/markdave123-py/jobmatch/internal/logger"
)

// RequestLogger puts a request-scoped logger into the context and logs each
// request on completion. It must run after chi's RequestID middleware.
func RequestLogger(base *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := base.WithField(logger.FieldRequestID, chimw.GetReqID(r.Context()))
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := l.WithFields(logger.Fields{
				"method":               r.Method,
				"path":                 r.URL.Path,
				logger.FieldStatus:     status,
				"bytes":                ww.BytesWritten(),
				logger.FieldDurationMs: time.Since(start).Milliseconds(),
			})
			switch {
			case status >= 500:
				entry.Error("request failed")
			case status >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
		})
	}
}
