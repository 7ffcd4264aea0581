package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	apperrors "escaperoom/pkg/errors"
	httputil "escaperoom/pkg/http"
	"escaperoom/pkg/logger"
)

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				log.Error("Panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				_ = httputil.WriteError(w, apperrors.Internal("Internal server error", nil))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
