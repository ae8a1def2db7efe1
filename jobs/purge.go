package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onnwee/creator-hub/backend/notify"
	"github.com/onnwee/creator-hub/backend/store"
)

// SchedulePurge deletes a closed ticket's record and its bound channel after
// a grace window. The timer is tied to ctx: on shutdown the purge simply does
// not run, and the closed ticket is removed by the daily ticket sweep rather
// than half-deleted. Returns a channel that closes when the purge finishes or is
// cancelled, so tests can wait deterministically.
func SchedulePurge(ctx context.Context, st store.Store, channels notify.ChannelProvider, ticketID, channelID string, delay time.Duration) <-chan struct{} {
	done := make(chan struct{})
	timer := time.NewTimer(delay)

	go func() {
		defer close(done)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			slog.Info("ticket purge cancelled by shutdown", slog.String("ticket_id", ticketID))
			return
		case <-timer.C:
		}

		if err := st.DeleteTicket(ctx, ticketID); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("ticket purge: record delete failed",
				slog.String("ticket_id", ticketID), slog.Any("err", err))
		}
		if channelID != "" {
			if err := channels.DeleteChannel(ctx, channelID); err != nil {
				slog.Warn("ticket purge: channel delete failed",
					slog.String("ticket_id", ticketID),
					slog.String("channel_id", channelID), slog.Any("err", err))
			}
		}
		slog.Info("ticket purged", slog.String("ticket_id", ticketID), slog.String("channel_id", channelID))
	}()

	return done
}
