// Package middleware holds the access log and panic recovery used by the status endpoint
package middleware

import (
	"net/http"
	"time"

	"repoharvest/internal/platform/logger"
)

// AccessLogOptions configures the zerolog access log
type AccessLogOptions struct {
	// Slow marks requests taking >= Slow as warn level, 0 disables slow marking
	Slow time.Duration
}

type captureWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(b)
	cw.bytes += n
	return n, err
}

// AccessLog logs method, path, status, elapsed and bytes written at Debug (Warn when slow)
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			log := logger.C(r.Context())
			evt := log.Debug()
			if opt.Slow > 0 && elapsed >= opt.Slow {
				evt = log.Warn()
			}
			evt.Int("status", cw.status).
				Dur("elapsed", elapsed).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("bytes", cw.bytes).
				Msg("request done")
		})
	}
}
