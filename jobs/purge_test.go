package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/testutil"
	"github.com/onnwee/creator-hub/backend/ticket"
)

func seedClosedTicket(t *testing.T, st store.Store) *ticket.Ticket {
	t.Helper()
	tk, err := ticket.New(ticket.TypeSupport, "u1", "alice", "chan-1", ticket.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if err := tk.Close("staff", "resolved"); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveTicket(context.Background(), tk); err != nil {
		t.Fatal(err)
	}
	return tk
}

func TestSchedulePurgeDeletesRecordAndChannel(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	channels := &testutil.FakeChannels{}
	tk := seedClosedTicket(t, st)

	done := SchedulePurge(ctx, st, channels, tk.ID, tk.ChannelID, time.Millisecond)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("purge did not complete")
	}

	if _, err := st.GetTicket(ctx, tk.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ticket still present after purge: err = %v", err)
	}
	deleted := channels.DeletedChannels()
	if len(deleted) != 1 || deleted[0] != "chan-1" {
		t.Errorf("deleted channels = %v, want [chan-1]", deleted)
	}
}

func TestSchedulePurgeCancelled(t *testing.T) {
	st := store.NewMemory()
	channels := &testutil.FakeChannels{}
	tk := seedClosedTicket(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := SchedulePurge(ctx, st, channels, tk.ID, tk.ChannelID, time.Hour)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("purge goroutine did not exit on cancel")
	}

	if _, err := st.GetTicket(context.Background(), tk.ID); err != nil {
		t.Errorf("cancelled purge must leave the ticket in place: %v", err)
	}
	if len(channels.DeletedChannels()) != 0 {
		t.Error("cancelled purge must not delete the channel")
	}
}

func TestSchedulePurgeMissingRecord(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	channels := &testutil.FakeChannels{}

	// Record already gone (e.g. purged by a previous run); channel cleanup
	// still happens.
	done := SchedulePurge(ctx, st, channels, "missing-id", "chan-9", time.Millisecond)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("purge did not complete")
	}
	deleted := channels.DeletedChannels()
	if len(deleted) != 1 || deleted[0] != "chan-9" {
		t.Errorf("deleted channels = %v, want [chan-9]", deleted)
	}
}
