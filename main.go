// Command backend is the main entrypoint for the creator-hub API and background jobs.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations (or uses the
//     in-memory store when STORE_BACKEND=memory).
//   - Starts the job scheduler: daily compliance check, weekly stat rollover,
//     monthly stat reset, daily inactivity scan, and stale-ticket sweep.
//   - Exposes an HTTP server with the management API, the platform-event
//     webhook, /healthz, /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/creator-hub/backend/compliance"
	"github.com/onnwee/creator-hub/backend/config"
	"github.com/onnwee/creator-hub/backend/db"
	"github.com/onnwee/creator-hub/backend/dispatch"
	"github.com/onnwee/creator-hub/backend/jobs"
	"github.com/onnwee/creator-hub/backend/notify"
	"github.com/onnwee/creator-hub/backend/server"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load("backend/.env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("creator-hub", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Store: Postgres by default, in-memory for local experiments and tests.
	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		slog.Warn("using in-memory store; all data is lost on restart")
		st = store.NewMemory()
	default:
		database, err := db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()

		// Versioned migrations first, embedded SQL as fallback for deployments
		// that predate the schema_migrations table.
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
				slog.Any("err", err), slog.String("component", "db_migrate"))
			if err := db.Migrate(context.Background(), database); err != nil {
				slog.Error("failed to migrate db", slog.Any("err", err))
				os.Exit(1)
			}
		}
		st = store.NewPostgres(database)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Outbound boundary to the chat gateway. Without NOTIFY_WEBHOOK_URL the
	// sink drops messages with a debug log, which keeps local runs quiet.
	sink := notify.NewWebhookSink(cfg.NotifyWebhookURL, cfg.AlertsChannel, cfg.NotifyTimeout)
	channels := notify.NoopChannels{}

	// Purge timers outlive the triggering request, so they bind to the root
	// context rather than the request context.
	purge := func(_ context.Context, ticketID, channelID string) {
		jobs.SchedulePurge(ctx, st, channels, ticketID, channelID, cfg.TicketPurgeDelay)
	}
	dispatcher := dispatch.New(cfg, st, sink, channels, purge)

	eng := compliance.NewEngine(st, sink, cfg.PlatformRules)
	scheduler := jobs.NewScheduler(st, sink, channels, eng, cfg.ComplianceHour, cfg.InactivityHour, cfg.Credits.WeeklyBonus)
	go scheduler.Start(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	go func() {
		if err := server.Start(ctx, cfg, st, dispatcher, sink); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
