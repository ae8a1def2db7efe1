package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/creator-hub/backend/compliance"
	"github.com/onnwee/creator-hub/backend/config"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/testutil"
	"github.com/onnwee/creator-hub/backend/ticket"
)

func newTestScheduler(st store.Store, sink *testutil.RecordingSink) *Scheduler {
	rules := map[string]config.PlatformRules{
		"youtube": {MinWeeklyVideos: 3, MinWeeklyStreamHours: 5},
	}
	eng := compliance.NewEngine(st, sink, rules)
	return NewScheduler(st, sink, &testutil.FakeChannels{}, eng, 9, 12, 25)
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatal(err)
	}
	return ts.UTC()
}

func TestRunDueWeeklyRollover(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	s := newTestScheduler(st, sink)

	m := testutil.ActiveMember("u1", "alice")
	m.RecordVideo("youtube")
	m.RecordStreamTime("youtube", 2, 50)
	testutil.SeedMember(t, st, m)

	// Monday, not the 1st.
	s.RunDue(ctx, at(t, "2026-01-05 00:00"))

	saved, err := st.GetMember(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.WeeklyStats) != 0 {
		t.Errorf("weekly stats not cleared: %v", saved.WeeklyStats)
	}
	yt := saved.MonthlyStats["youtube"]
	if yt == nil || yt.Videos != 1 || yt.StreamHours != 2 {
		t.Errorf("monthly bucket = %+v, want folded weekly stats", yt)
	}
	if saved.Credits != 25 {
		t.Errorf("credits = %d, want 25 weekly bonus", saved.Credits)
	}
	hist, err := st.CreditHistoryByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].PerformedBy != "system" || hist[0].Reason != "weekly activity bonus" {
		t.Errorf("history = %+v", hist)
	}
}

func TestRunDueWeeklyRolloverNoBonusForIdle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	s := newTestScheduler(st, sink)

	idle := testutil.ActiveMember("u1", "alice")
	testutil.SeedMember(t, st, idle)

	pendingButBusy := testutil.ActiveMember("u2", "bob")
	pendingButBusy.Status = "pending"
	pendingButBusy.RecordVideo("youtube")
	testutil.SeedMember(t, st, pendingButBusy)

	s.RunDue(ctx, at(t, "2026-01-05 00:00"))

	for _, id := range []string{"u1", "u2"} {
		m, err := st.GetMember(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if m.Credits != 0 {
			t.Errorf("member %s credits = %d, want no bonus", id, m.Credits)
		}
	}
}

func TestRunDueRolloverPrecedesMonthlyReset(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	s := newTestScheduler(st, sink)

	m := testutil.ActiveMember("u1", "alice")
	m.RecordVideo("youtube")
	testutil.SeedMember(t, st, m)

	// Monday the 1st: rollover folds the week into the closing month, then
	// the reset clears it. Nothing survives into the new month.
	s.RunDue(ctx, at(t, "2026-06-01 00:00"))

	saved, err := st.GetMember(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.WeeklyStats) != 0 {
		t.Errorf("weekly stats not cleared: %v", saved.WeeklyStats)
	}
	if len(saved.MonthlyStats) != 0 {
		t.Errorf("monthly stats should be cleared after reset: %v", saved.MonthlyStats)
	}
	if saved.Stats.TotalVideos != 1 {
		t.Errorf("lifetime videos = %d, want 1", saved.Stats.TotalVideos)
	}
}

func TestRunDueComplianceHour(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	s := newTestScheduler(st, sink)

	m := testutil.ActiveMember("u1", "alice")
	m.Platforms["youtube"] = "alice_yt"
	testutil.SeedMember(t, st, m)

	// Tuesday at the compliance hour.
	s.RunDue(ctx, at(t, "2026-06-02 09:00"))

	if sink.AlertCount() != 1 {
		t.Fatalf("alerts = %d, want 1 compliance alert", sink.AlertCount())
	}
	saved, err := st.GetMember(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Violations) != 1 {
		t.Errorf("violations = %d, want 1", len(saved.Violations))
	}
}

func TestRunDueInactivity(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	s := newTestScheduler(st, sink)

	idle := testutil.ActiveMember("u1", "alice")
	testutil.SeedMember(t, st, idle)

	busy := testutil.ActiveMember("u2", "bob")
	busy.RecordVideo("youtube")
	testutil.SeedMember(t, st, busy)

	suspended := testutil.ActiveMember("u3", "carol")
	suspended.Status = "suspended"
	testutil.SeedMember(t, st, suspended)

	s.RunDue(ctx, at(t, "2026-06-02 12:00"))

	if sink.AlertCount() != 1 {
		t.Fatalf("alerts = %d, want 1 inactivity alert", sink.AlertCount())
	}
	if sink.Alerts[0].Title != "Inactive Streamer" {
		t.Errorf("alert title = %q", sink.Alerts[0].Title)
	}
}

func TestRunDueDedupesWithinMinute(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	s := newTestScheduler(st, sink)

	idle := testutil.ActiveMember("u1", "alice")
	testutil.SeedMember(t, st, idle)

	now := at(t, "2026-06-02 12:00")
	s.RunDue(ctx, now)
	s.RunDue(ctx, now.Add(20*time.Second))

	if sink.AlertCount() != 1 {
		t.Errorf("alerts = %d, want 1 after duplicate tick", sink.AlertCount())
	}

	// The next day fires again.
	s.RunDue(ctx, now.Add(24*time.Hour))
	if sink.AlertCount() != 2 {
		t.Errorf("alerts = %d, want 2 after next day's check", sink.AlertCount())
	}
}

func TestSweepClosedTickets(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	channels := &testutil.FakeChannels{}
	eng := compliance.NewEngine(st, sink, nil)
	s := NewScheduler(st, sink, channels, eng, 9, 12, 0)
	s.now = func() time.Time { return at(t, "2026-06-02 00:05") }

	stale, err := ticket.New(ticket.TypeSupport, "u1", "alice", "chan-stale", ticket.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if err := stale.Close("staff", ""); err != nil {
		t.Fatal(err)
	}
	old := at(t, "2026-06-01 20:00")
	stale.ClosedAt = &old
	if err := st.SaveTicket(ctx, stale); err != nil {
		t.Fatal(err)
	}

	fresh, err := ticket.New(ticket.TypeIssue, "u2", "bob", "chan-fresh", ticket.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.Close("staff", ""); err != nil {
		t.Fatal(err)
	}
	recent := at(t, "2026-06-02 00:00")
	fresh.ClosedAt = &recent
	if err := st.SaveTicket(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	open, err := ticket.New(ticket.TypeCredit, "u3", "carol", "chan-open", ticket.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveTicket(ctx, open); err != nil {
		t.Fatal(err)
	}

	if err := s.SweepClosedTickets(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := st.GetTicket(ctx, stale.ID); err == nil {
		t.Error("stale closed ticket should be swept")
	}
	if _, err := st.GetTicket(ctx, fresh.ID); err != nil {
		t.Error("recently closed ticket should survive the sweep")
	}
	if _, err := st.GetTicket(ctx, open.ID); err != nil {
		t.Error("open ticket should survive the sweep")
	}
	deleted := channels.DeletedChannels()
	if len(deleted) != 1 || deleted[0] != "chan-stale" {
		t.Errorf("deleted channels = %v, want [chan-stale]", deleted)
	}
}

func TestRunDueQuietMinute(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}
	s := newTestScheduler(st, sink)

	idle := testutil.ActiveMember("u1", "alice")
	testutil.SeedMember(t, st, idle)

	s.RunDue(ctx, at(t, "2026-06-02 15:30"))
	if sink.AlertCount() != 0 || sink.PostCount() != 0 {
		t.Errorf("no job should fire off-schedule: alerts=%d posts=%d", sink.AlertCount(), sink.PostCount())
	}
}
