package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shopzen/shopzen-backend/pkg/logger"
)

const maxRequestIDLen = 64

// RequestID reuses an inbound X-Request-Id of at most 64 bytes or lets chi
// mint one, echoes it on the response and tags the log context with it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		tag := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id := chimw.GetReqID(ctx)
			w.Header().Set(chimw.RequestIDHeader, id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		assign := chimw.RequestID(tag)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.Header.Get(chimw.RequestIDHeader)) > maxRequestIDLen {
				r.Header.Del(chimw.RequestIDHeader)
			}
			assign.ServeHTTP(w, r)
		})
	}
}
