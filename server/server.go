// Package server exposes the HTTP surface: health and metrics probes, the
// authenticated management API, the inbound platform-event webhook, and a
// command execution endpoint for the chat gateway. It injects correlation IDs
// into request contexts for consistent logging and starts a tracing span per
// request.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/creator-hub/backend/config"
	"github.com/onnwee/creator-hub/backend/dispatch"
	"github.com/onnwee/creator-hub/backend/notify"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/telemetry"
)

// NewMux returns the HTTP handler with all routes. The provided context bounds
// the rate limiter cleanup goroutine.
func NewMux(ctx context.Context, cfg *config.Config, st store.Store, d *dispatch.Dispatcher, sink notify.Sink) http.Handler {
	rateLimiter := newIPRateLimiter(ctx, loadRateLimiterConfig())
	handlers := NewHandlers(cfg, st, d, sink)

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	mux.HandleFunc("/webhook/platform-event", handlers.HandlePlatformEvent)

	mux.HandleFunc("/api/streamers", handlers.HandleStreamersList)
	mux.HandleFunc("/api/streamers/", handlers.HandleStreamersDispatcher)
	mux.HandleFunc("/api/tickets", handlers.HandleTicketsList)
	mux.HandleFunc("/api/commands", handlers.HandleCommand)

	// Selective protection: shared-secret auth on /api/, webhook secret plus
	// rate limiting on the webhook path.
	selectiveHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			apiKeyAuth(mux, cfg.APISecret).ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/webhook/platform-event" {
			rateLimitMiddleware(mux, rateLimiter).ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	// Correlation ID + tracing wrapper.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start",
			slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		selectiveHandler.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
		if wrappedWriter.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", wrappedWriter.statusCode))
			span.SetStatus(code, msg)
		}
	})
	return withCORSConfig(handler, loadCORSConfig())
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, cfg *config.Config, st store.Store, d *dispatch.Dispatcher, sink notify.Sink) error {
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      NewMux(ctx, cfg, st, d, sink),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
