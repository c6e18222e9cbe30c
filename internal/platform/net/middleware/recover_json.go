package middleware

import (
	stdhttp "net/http"
	"runtime/debug"

	"repoharvest/internal/platform/logger"
	phttp "repoharvest/internal/platform/net/http"
)

// RecoverJSON converts panics into a JSON 500 envelope and logs the stack
func RecoverJSON(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == stdhttp.ErrAbortHandler {
				panic(v)
			}
			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Str("path", r.URL.Path).
				Msg("panic recovered")

			phttp.JSON(w, stdhttp.StatusInternalServerError, phttp.Envelope{
				StatusCode: stdhttp.StatusInternalServerError,
				Status:     stdhttp.StatusText(stdhttp.StatusInternalServerError),
				Code:       "panic",
				Error:      "internal error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}
