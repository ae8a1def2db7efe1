package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/ticket"
)

// handleApply opens an application ticket with its own channel. Only one open
// application per user is allowed.
func (d *Dispatcher) handleApply(ctx context.Context, cmd Command) (Response, error) {
	platform, err := argString(cmd, "platform")
	if err != nil {
		return Response{}, err
	}
	if _, ok := d.cfg.PlatformRules[platform]; !ok {
		return Response{}, usageErrorf("Unknown platform %q.", platform)
	}
	handle, err := argString(cmd, "username")
	if err != nil {
		return Response{}, err
	}
	reason := argStringOpt(cmd, "reason")

	if _, err := d.store.OpenTicketFor(ctx, cmd.CallerID, ticket.TypeApplication); err == nil {
		return Response{Text: "You already have an open application.", Ephemeral: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Response{}, err
	}

	channelID, err := d.channels.CreateChannel(ctx, "application-"+cmd.CallerID, cmd.CallerID)
	if err != nil {
		return Response{}, fmt.Errorf("create application channel: %w", err)
	}

	t, err := ticket.New(ticket.TypeApplication, cmd.CallerID, argStringOpt(cmd, "display_name"), channelID, ticket.Metadata{
		Application: &ticket.ApplicationMeta{Platform: platform, Username: handle, Reason: reason},
	})
	if err != nil {
		return Response{}, err
	}
	if err := d.store.SaveTicket(ctx, t); err != nil {
		return Response{}, err
	}

	if d.cfg.ApplicationLog != "" {
		msg := fmt.Sprintf("New application from %s for %s (%s).", cmd.CallerID, platform, handle)
		if err := d.sink.Post(ctx, d.cfg.ApplicationLog, msg); err != nil {
			slog.Warn("application notification failed", slog.String("user_id", cmd.CallerID), slog.Any("err", err))
		}
	}

	return Response{Text: fmt.Sprintf("Application received. Ticket %s opened.", t.ID), Ephemeral: true}, nil
}

func (d *Dispatcher) handleTicketCreate(ctx context.Context, cmd Command) (Response, error) {
	ticketType, err := argString(cmd, "type")
	if err != nil {
		return Response{}, err
	}
	if ticketType == ticket.TypeApplication {
		return Response{}, usageErrorf("Use /apply to open an application.")
	}
	description := argStringOpt(cmd, "description")

	if _, err := d.store.OpenTicketFor(ctx, cmd.CallerID, ticketType); err == nil {
		return Response{Text: fmt.Sprintf("You already have an open %s ticket.", ticketType), Ephemeral: true}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Response{}, err
	}

	channelID, err := d.channels.CreateChannel(ctx, ticketType+"-"+cmd.CallerID, cmd.CallerID)
	if err != nil {
		return Response{}, fmt.Errorf("create ticket channel: %w", err)
	}

	t, err := ticket.New(ticketType, cmd.CallerID, argStringOpt(cmd, "display_name"), channelID, ticket.Metadata{
		Support: &ticket.SupportMeta{Description: description},
	})
	if err != nil {
		return Response{}, usageErrorf("%s", err.Error())
	}
	if err := d.store.SaveTicket(ctx, t); err != nil {
		return Response{}, err
	}

	return Response{Text: fmt.Sprintf("Ticket %s opened.", t.ID), Ephemeral: true}, nil
}

// handleTicketClose closes a ticket and schedules the deferred purge of its
// record and channel. The owner may close their own ticket; anything else
// needs management permission.
func (d *Dispatcher) handleTicketClose(ctx context.Context, cmd Command) (Response, error) {
	id, err := argString(cmd, "id")
	if err != nil {
		return Response{}, err
	}
	reason := argStringOpt(cmd, "reason")

	t, err := d.store.GetTicket(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Response{}, usageErrorf("Ticket %s not found.", id)
	}
	if err != nil {
		return Response{}, err
	}
	if t.UserID != cmd.CallerID && !d.HasManagementPermission(cmd) {
		return Response{}, ErrPermissionDenied
	}

	if err := t.Close(cmd.CallerID, reason); err != nil {
		if errors.Is(err, ticket.ErrAlreadyClosed) {
			return Response{Text: fmt.Sprintf("Ticket %s is already closed.", id), Ephemeral: true}, nil
		}
		return Response{}, err
	}
	if err := d.store.SaveTicket(ctx, t); err != nil {
		return Response{}, err
	}
	d.purge(ctx, t.ID, t.ChannelID)

	return Response{Text: fmt.Sprintf("Ticket %s closed. The channel will be removed shortly.", id)}, nil
}

func (d *Dispatcher) handleTicketList(ctx context.Context, cmd Command) (Response, error) {
	var tickets []*ticket.Ticket
	var err error

	status := argStringOpt(cmd, "status")
	switch {
	case d.HasManagementPermission(cmd) && status != "":
		tickets, err = d.store.TicketsByStatus(ctx, status)
	case d.HasManagementPermission(cmd) && argStringOpt(cmd, "user") != "":
		tickets, err = d.store.TicketsByUser(ctx, argStringOpt(cmd, "user"))
	default:
		tickets, err = d.store.TicketsByUser(ctx, cmd.CallerID)
	}
	if err != nil {
		return Response{}, err
	}
	if len(tickets) == 0 {
		return Response{Text: "No tickets found.", Ephemeral: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tickets (%d):\n", len(tickets))
	for _, t := range tickets {
		s := t.Summarize()
		line := fmt.Sprintf("%s - %s - %s - %s", s.ID, s.Type, s.Status, s.Priority)
		if s.AssignedTo != "" {
			line += " - assigned to " + s.AssignedTo
		}
		b.WriteString(line + "\n")
	}
	return Response{Text: b.String(), Ephemeral: true}, nil
}

func (d *Dispatcher) handleTicketAssign(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	id, err := argString(cmd, "id")
	if err != nil {
		return Response{}, err
	}
	staffID, err := argString(cmd, "staff")
	if err != nil {
		return Response{}, err
	}

	t, err := d.store.GetTicket(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Response{}, usageErrorf("Ticket %s not found.", id)
	}
	if err != nil {
		return Response{}, err
	}

	if err := t.Assign(staffID); err != nil {
		if errors.Is(err, ticket.ErrTicketClosed) {
			return Response{Text: fmt.Sprintf("Ticket %s is closed and cannot be assigned.", id), Ephemeral: true}, nil
		}
		return Response{}, err
	}
	if err := d.store.SaveTicket(ctx, t); err != nil {
		return Response{}, err
	}

	return Response{Text: fmt.Sprintf("Ticket %s assigned to %s.", id, staffID)}, nil
}
