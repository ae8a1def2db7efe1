// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsHandled      *prometheus.CounterVec
	CommandErrors        prometheus.Counter
	WebhookEvents        *prometheus.CounterVec
	JobRuns              *prometheus.CounterVec
	JobErrors            *prometheus.CounterVec
	ComplianceViolations prometheus.Counter
	InactivityAlerts     prometheus.Counter
	AlertsSent           prometheus.Counter
	AlertsFailed         prometheus.Counter

	// Histograms (seconds)
	CommandDuration prometheus.Observer

	// Gauges
	ActiveMembersGauge prometheus.Gauge
	OpenTicketsGauge   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "hub_commands_handled_total", Help: "Commands dispatched, by command name"}, []string{"command"})
		CommandErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "hub_command_errors_total", Help: "Commands that failed with an infrastructure error"})
		WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{Name: "hub_webhook_events_total", Help: "Inbound platform webhook events, by event type"}, []string{"event"})
		JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{Name: "hub_job_runs_total", Help: "Scheduled job runs, by job name"}, []string{"job"})
		JobErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "hub_job_errors_total", Help: "Scheduled job runs that logged an error, by job name"}, []string{"job"})
		ComplianceViolations = promauto.NewCounter(prometheus.CounterOpts{Name: "hub_compliance_violations_total", Help: "Compliance violations recorded"})
		InactivityAlerts = promauto.NewCounter(prometheus.CounterOpts{Name: "hub_inactivity_alerts_total", Help: "Inactivity alerts emitted"})
		AlertsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "hub_alerts_sent_total", Help: "Alerts delivered to the notification sink"})
		AlertsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "hub_alerts_failed_total", Help: "Alerts the notification sink rejected"})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "hub_command_duration_seconds", Help: "Command handling duration seconds", Buckets: prometheus.DefBuckets})
		ActiveMembersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "hub_active_members", Help: "Members with status=active at last scan"})
		OpenTicketsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "hub_open_tickets", Help: "Tickets not yet closed at last scan"})
	})
}

// CountCommand increments the per-command counter if metrics are initialized.
func CountCommand(name string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(name).Inc()
	}
}

// CountWebhookEvent increments the per-event webhook counter if metrics are initialized.
func CountWebhookEvent(event string) {
	if WebhookEvents != nil {
		WebhookEvents.WithLabelValues(event).Inc()
	}
}

// CountJobRun increments the per-job run counter if metrics are initialized.
func CountJobRun(job string) {
	if JobRuns != nil {
		JobRuns.WithLabelValues(job).Inc()
	}
}

// CountJobError increments the per-job error counter if metrics are initialized.
func CountJobError(job string) {
	if JobErrors != nil {
		JobErrors.WithLabelValues(job).Inc()
	}
}

// SetActiveMembers records the current active member count.
func SetActiveMembers(n int) {
	if ActiveMembersGauge != nil {
		ActiveMembersGauge.Set(float64(n))
	}
}

// SetOpenTickets records the current open ticket count.
func SetOpenTickets(n int) {
	if OpenTicketsGauge != nil {
		OpenTicketsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
