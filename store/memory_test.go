package store

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/ticket"
)

func TestMemoryMemberRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	if _, err := st.GetMember(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing member err = %v, want ErrNotFound", err)
	}

	m := member.New("u1", "alice")
	m.AddCredits(25)
	if err := st.SaveMember(ctx, m); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetMember(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice" || got.Credits != 25 {
		t.Errorf("got %s/%d, want alice/25", got.Username, got.Credits)
	}

	// Loaded copies are isolated from the stored record.
	got.Credits = 999
	again, err := st.GetMember(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Credits != 25 {
		t.Errorf("stored credits mutated through loaded copy: %d", again.Credits)
	}

	if err := st.DeleteMember(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetMember(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryTicketFilters(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	mk := func(typ, user string) *ticket.Ticket {
		t.Helper()
		meta := ticket.Metadata{}
		if typ == ticket.TypeApplication {
			meta.Application = &ticket.ApplicationMeta{Platform: "youtube", Username: user + "_yt"}
		}
		tk, err := ticket.New(typ, user, user, "chan-"+user, meta)
		if err != nil {
			t.Fatal(err)
		}
		if err := st.SaveTicket(ctx, tk); err != nil {
			t.Fatal(err)
		}
		return tk
	}

	app := mk(ticket.TypeApplication, "u1")
	sup := mk(ticket.TypeSupport, "u1")
	mk(ticket.TypeIssue, "u2")

	byUser, err := st.TicketsByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byUser) != 2 {
		t.Errorf("tickets for u1 = %d, want 2", len(byUser))
	}

	open, err := st.TicketsByStatus(ctx, ticket.StatusOpen)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 3 {
		t.Errorf("open tickets = %d, want 3", len(open))
	}

	found, err := st.OpenTicketFor(ctx, "u1", ticket.TypeApplication)
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != app.ID {
		t.Errorf("open application id = %s, want %s", found.ID, app.ID)
	}

	// Closing the application removes it from the open lookup.
	if err := app.Close("staff", ""); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveTicket(ctx, app); err != nil {
		t.Fatal(err)
	}
	if _, err := st.OpenTicketFor(ctx, "u1", ticket.TypeApplication); !errors.Is(err, ErrNotFound) {
		t.Errorf("closed application still reported open: err = %v", err)
	}

	// An assigned (in-progress) ticket still counts as open.
	if err := sup.Assign("staff"); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveTicket(ctx, sup); err != nil {
		t.Fatal(err)
	}
	if _, err := st.OpenTicketFor(ctx, "u1", ticket.TypeSupport); err != nil {
		t.Errorf("in-progress ticket should count as open: %v", err)
	}

	if err := st.DeleteTicket(ctx, sup.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetTicket(ctx, sup.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryCreditHistory(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	entries := []CreditEntry{
		{UserID: "u1", Amount: 10, Type: "add", Reason: "video", NewBalance: 10},
		{UserID: "u1", Amount: -5, Type: "deduct", Reason: "redeem", NewBalance: 5},
		{UserID: "u2", Amount: 50, Type: "add", Reason: "approval", NewBalance: 50},
	}
	for _, e := range entries {
		if err := st.AppendCreditEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	hist, err := st.CreditHistoryByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 {
		t.Fatalf("history for u1 = %d entries, want 2", len(hist))
	}
	if hist[0].Amount != 10 || hist[1].Amount != -5 {
		t.Errorf("history order = %+v, want insertion order", hist)
	}
	if hist[1].NewBalance != 5 {
		t.Errorf("new balance = %d, want 5", hist[1].NewBalance)
	}
}
