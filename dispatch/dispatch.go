// Package dispatch maps inbound user commands to handlers. The registry is
// built once from the Config at startup and never mutated afterwards; handlers
// share nothing but the persistence gateway and the notification sink.
//
// Every handler returns a user-visible Response. Expected conditions
// (bad arguments, missing permission, unknown member, insufficient credits)
// become friendly messages; infrastructure failures are logged with the
// correlation id and surface as a generic failure line.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/creator-hub/backend/config"
	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/notify"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/telemetry"
)

// Command is one inbound user command, already parsed by the chat gateway.
type Command struct {
	Name        string
	Sub         string
	Args        map[string]string
	CallerID    string
	CallerRoles []string
}

// Response is what the caller sees. Ephemeral responses are shown only to the
// caller by the gateway.
type Response struct {
	Text      string
	Ephemeral bool
}

// ErrPermissionDenied marks a capability check failure.
var ErrPermissionDenied = errors.New("permission denied")

// usageError is a validation failure with a user-facing message.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

type handlerFunc func(ctx context.Context, cmd Command) (Response, error)

type subcommand struct {
	description string
	handler     handlerFunc
}

type commandEntry struct {
	description string
	subs        map[string]subcommand
	// handler is set for commands without subcommands (apply, help).
	handler handlerFunc
}

// PurgeFunc schedules the deferred deletion of a closed ticket and its channel.
type PurgeFunc func(ctx context.Context, ticketID, channelID string)

// Dispatcher routes commands to handlers.
type Dispatcher struct {
	cfg      *config.Config
	store    store.Store
	sink     notify.Sink
	channels notify.ChannelProvider
	purge    PurgeFunc

	registry map[string]commandEntry
	// ordered command names for help output
	order []string
}

// New builds the dispatcher and its immutable command registry.
func New(cfg *config.Config, st store.Store, sink notify.Sink, channels notify.ChannelProvider, purge PurgeFunc) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		store:    st,
		sink:     sink,
		channels: channels,
		purge:    purge,
		registry: map[string]commandEntry{},
	}
	if d.purge == nil {
		d.purge = func(context.Context, string, string) {}
	}

	d.register("apply", commandEntry{
		description: "Apply to join the streamer program",
		handler:     d.handleApply,
	})
	d.register("credits", commandEntry{
		description: "Credit management",
		subs: map[string]subcommand{
			"balance": {"Check a credit balance", d.handleCreditsBalance},
			"add":     {"Add credits to a streamer (management only)", d.handleCreditsAdd},
			"deduct":  {"Deduct credits from a streamer (management only)", d.handleCreditsDeduct},
			"history": {"View credit transaction history", d.handleCreditsHistory},
		},
	})
	d.register("streamer", commandEntry{
		description: "Streamer profile management",
		subs: map[string]subcommand{
			"profile":     {"Show a streamer profile", d.handleStreamerProfile},
			"approve":     {"Approve an applicant (management only)", d.handleStreamerApprove},
			"suspend":     {"Suspend a streamer (management only)", d.handleStreamerSuspend},
			"reactivate":  {"Reactivate a suspended streamer (management only)", d.handleStreamerReactivate},
			"achievement": {"Record an achievement and grant the goal award (management only)", d.handleStreamerAchievement},
			"list":        {"List streamers, optionally by status", d.handleStreamerList},
		},
	})
	d.register("ticket", commandEntry{
		description: "Ticket workflow",
		subs: map[string]subcommand{
			"create": {"Open a ticket", d.handleTicketCreate},
			"close":  {"Close a ticket", d.handleTicketClose},
			"list":   {"List tickets", d.handleTicketList},
			"assign": {"Assign a ticket to staff (management only)", d.handleTicketAssign},
		},
	})
	d.register("report", commandEntry{
		description: "Activity reports",
		subs: map[string]subcommand{
			"weekly":   {"Weekly activity report", d.handleReportWeekly},
			"monthly":  {"Monthly activity report", d.handleReportMonthly},
			"top":      {"Top streamers by credits", d.handleReportTop},
			"platform": {"Per-platform activity report", d.handleReportPlatform},
		},
	})
	d.register("help", commandEntry{
		description: "List available commands",
		handler:     d.handleHelp,
	})

	return d
}

func (d *Dispatcher) register(name string, entry commandEntry) {
	d.registry[name] = entry
	d.order = append(d.order, name)
}

// Dispatch routes a command and always returns something the user can read.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) Response {
	entry, ok := d.registry[cmd.Name]
	if !ok {
		return Response{Text: fmt.Sprintf("Unknown command %q. Try /help.", cmd.Name), Ephemeral: true}
	}
	handler := entry.handler
	if handler == nil {
		sub, ok := entry.subs[cmd.Sub]
		if !ok {
			return Response{Text: fmt.Sprintf("Unknown subcommand %q for /%s. Try /help.", cmd.Sub, cmd.Name), Ephemeral: true}
		}
		handler = sub.handler
	}

	telemetry.CountCommand(cmd.Name)

	var resp Response
	var err error
	telemetry.TimeFunc(telemetry.CommandDuration, func() {
		resp, err = handler(ctx, cmd)
	})
	if err == nil {
		return resp
	}

	var ue usageError
	switch {
	case errors.As(err, &ue):
		return Response{Text: ue.msg, Ephemeral: true}
	case errors.Is(err, ErrPermissionDenied):
		return Response{Text: "You do not have permission to do that.", Ephemeral: true}
	case errors.Is(err, store.ErrNotFound):
		return Response{Text: "Not found.", Ephemeral: true}
	default:
		if telemetry.CommandErrors != nil {
			telemetry.CommandErrors.Inc()
		}
		telemetry.LoggerWithCorr(ctx).Error("command failed",
			slog.String("command", cmd.Name),
			slog.String("sub", cmd.Sub),
			slog.String("caller", cmd.CallerID),
			slog.Any("err", err))
		return Response{Text: "Something went wrong. Please try again later.", Ephemeral: true}
	}
}

// --- capability checks -----------------------------------------------------

// IsAdmin reports whether the caller holds an admin role.
func (d *Dispatcher) IsAdmin(cmd Command) bool {
	return config.HasRole(cmd.CallerRoles, d.cfg.AdminRoles)
}

// IsStreamerManager reports whether the caller holds a streamer-manager role.
func (d *Dispatcher) IsStreamerManager(cmd Command) bool {
	return config.HasRole(cmd.CallerRoles, d.cfg.StreamerManagerRoles)
}

// HasManagementPermission is the union capability gating staff-only commands.
func (d *Dispatcher) HasManagementPermission(cmd Command) bool {
	return d.IsAdmin(cmd) || d.IsStreamerManager(cmd)
}

func (d *Dispatcher) requireManagement(cmd Command) error {
	if !d.HasManagementPermission(cmd) {
		return ErrPermissionDenied
	}
	return nil
}

// --- argument helpers ------------------------------------------------------

func argString(cmd Command, key string) (string, error) {
	v := strings.TrimSpace(cmd.Args[key])
	if v == "" {
		return "", usageErrorf("Missing required argument %q.", key)
	}
	return v, nil
}

func argStringOpt(cmd Command, key string) string {
	return strings.TrimSpace(cmd.Args[key])
}

func argInt(cmd Command, key string, min, max int) (int, error) {
	raw, err := argString(cmd, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, usageErrorf("Argument %q must be an integer.", key)
	}
	if n < min || (max > 0 && n > max) {
		if max > 0 {
			return 0, usageErrorf("Argument %q must be between %d and %d.", key, min, max)
		}
		return 0, usageErrorf("Argument %q must be at least %d.", key, min)
	}
	return n, nil
}

// targetUser resolves the optional "user" argument, defaulting to the caller.
// Looking at another user requires management permission.
func (d *Dispatcher) targetUser(cmd Command) (string, error) {
	target := argStringOpt(cmd, "user")
	if target == "" || target == cmd.CallerID {
		return cmd.CallerID, nil
	}
	if !d.HasManagementPermission(cmd) {
		return "", ErrPermissionDenied
	}
	return target, nil
}

// --- help ------------------------------------------------------------------

func (d *Dispatcher) handleHelp(_ context.Context, _ Command) (Response, error) {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range d.order {
		entry := d.registry[name]
		fmt.Fprintf(&b, "/%s - %s\n", name, entry.description)
		subs := make([]string, 0, len(entry.subs))
		for s := range entry.subs {
			subs = append(subs, s)
		}
		sort.Strings(subs)
		for _, s := range subs {
			fmt.Fprintf(&b, "  /%s %s - %s\n", name, s, entry.subs[s].description)
		}
	}
	return Response{Text: b.String(), Ephemeral: true}, nil
}

// loadMember fetches a member or reports a friendly not-found.
func (d *Dispatcher) loadMember(ctx context.Context, userID string) (*member.Member, error) {
	m, err := d.store.GetMember(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, usageErrorf("No streamer profile found for %s.", userID)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}
