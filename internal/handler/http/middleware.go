package http

import (
	"mime"
	"net/http"

	"github.com/utafrali/auth-service/pkg/httputil"
	"github.com/utafrali/auth-service/pkg/logger"
)

// ContentTypeJSON rejects requests that carry a body in anything other than
// application/json. Bodyless POSTs such as /refresh pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && hasBodyMethod(r.Method) {
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
					Success:   false,
					Message:   "Content-Type must be application/json",
					Code:      "UNSUPPORTED_MEDIA_TYPE",
					RequestID: logger.CorrelationIDFromContext(r.Context()),
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func hasBodyMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}
