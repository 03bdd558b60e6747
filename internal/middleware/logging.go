package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"detectserver/internal/logger"
)

// RequestLogger writes one info line per request, or a warning line for
// 5xx responses.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				log.Warning("%s %s %d %s (%s)", r.Method, r.URL.Path, status, time.Since(start), chimiddleware.GetReqID(r.Context()))
				return
			}
			log.Info("%s %s %d %s (%s)", r.Method, r.URL.Path, status, time.Since(start), chimiddleware.GetReqID(r.Context()))
		})
	}
}
