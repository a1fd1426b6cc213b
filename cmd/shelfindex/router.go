package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/app"
	"github.com/kailas-cloud/shelfindex/internal/config"
	logpkg "github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/metrics"
	chiTransport "github.com/kailas-cloud/shelfindex/internal/transport/chi"
	gen "github.com/kailas-cloud/shelfindex/internal/transport/generated"
)

// newRouter mounts the generated API behind recovery, request ids, the
// canonical log line, auth and metrics, in that order.
func newRouter(cfg *config.Config, a *app.App, logger *zap.Logger) http.Handler {
	// A nil *catalog.Service inside the interface would not compare nil.
	var books chiTransport.Catalog
	if a.Catalog != nil {
		books = a.Catalog
	}
	server := chiTransport.NewServer(a.Search, books, a.Health, int64(cfg.HTTP.MaxUploadMB)<<20, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware("/metrics"))

	return gen.HandlerWithOptions(server, gen.ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: chiTransport.ParamErrorHandler,
	})
}

// jsonRecoverer turns a handler panic into a JSON 500. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rvr)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rvr),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stacktrace"),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(gen.ErrorResponse{
					Code:    gen.ErrorResponseCodeInternalError,
					Message: "internal error",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware writes one http_request line per request and puts a
// request-scoped logger in the context. Query text is not logged, only
// its size.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ctx := logpkg.With(logpkg.ContextWithLogger(r.Context(), logger), zap.String("request_id", requestID))
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if q := r.URL.Query().Get("query"); q != "" {
				fields = append(fields, zap.Int("query_bytes", len(q)))
			}
			logpkg.FromContext(ctx).Info("http_request", fields...)
		})
	}
}
