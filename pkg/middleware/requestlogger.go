package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/auth-service/pkg/logger"
)

// RequestLogger stores a request-scoped logger enriched with correlation_id,
// user_id, trace_id and span_id in the context. Handlers retrieve it with
// logger.FromContext.
//
// Mount it after RequestLogging and Tracing. Routes guarded by Auth get the
// user id because Auth re-enriches the context before calling the handler.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.NewContext(r.Context(), logger.WithContext(r.Context(), base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
