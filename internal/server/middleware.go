package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AuthMiddleware validates the bearer token against the configured API key
// using a constant-time comparison.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authorization := request.Header.Get("Authorization")
			if !strings.HasPrefix(authorization, "Bearer ") {
				http.Error(writer, `{"error":"missing authorization","kind":"auth"}`, http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(authorization, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				http.Error(writer, `{"error":"invalid api key","kind":"auth"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			startTime := time.Now()
			wrappedWriter := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
			next.ServeHTTP(wrappedWriter, request)
			logger.Info("request",
				zap.String("method", request.Method),
				zap.String("path", request.URL.Path),
				zap.String("request_id", middleware.GetReqID(request.Context())),
				zap.Int("status", wrappedWriter.Status()),
				zap.Int64("duration_ms", time.Since(startTime).Milliseconds()),
			)
		})
	}
}
