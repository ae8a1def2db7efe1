package compliance

import (
	"context"
	"strings"
	"testing"

	"github.com/onnwee/creator-hub/backend/config"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/testutil"
)

func testRules() map[string]config.PlatformRules {
	return map[string]config.PlatformRules{
		"youtube": {MinWeeklyVideos: 3, MinWeeklyStreamHours: 5},
		"twitch":  {MinWeeklyStreamHours: 10},
	}
}

func TestRunRecordsViolationAndAlert(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}

	m := testutil.ActiveMember("u1", "alice")
	m.Platforms["youtube"] = "alice_yt"
	m.RecordVideo("youtube")
	m.RecordVideo("youtube")
	m.RecordStreamTime("youtube", 3, 0)
	testutil.SeedMember(t, st, m)

	eng := NewEngine(st, sink, testRules())
	if err := eng.Run(ctx); err != nil {
		t.Fatal(err)
	}

	saved, err := st.GetMember(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(saved.Violations))
	}
	v := saved.Violations[0]
	if v.Type != "compliance" || v.Platform != "youtube" {
		t.Errorf("violation = %+v, want compliance/youtube", v)
	}
	if !strings.Contains(v.Details, "2/3 videos") || !strings.Contains(v.Details, "3.0/5.0 hours") {
		t.Errorf("violation detail = %q, want actual/required counts", v.Details)
	}

	if sink.AlertCount() != 1 {
		t.Fatalf("alerts = %d, want 1", sink.AlertCount())
	}
	if sink.Alerts[0].Title != "Compliance Violation" {
		t.Errorf("alert title = %q", sink.Alerts[0].Title)
	}
}

func TestRunSkipsCompliantAndNonActive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}

	compliant := testutil.ActiveMember("u1", "alice")
	compliant.Platforms["youtube"] = "alice_yt"
	for i := 0; i < 3; i++ {
		compliant.RecordVideo("youtube")
	}
	compliant.RecordStreamTime("youtube", 5, 0)
	testutil.SeedMember(t, st, compliant)

	suspended := testutil.ActiveMember("u2", "bob")
	suspended.Status = "suspended"
	suspended.Platforms["youtube"] = "bob_yt"
	testutil.SeedMember(t, st, suspended)

	pending := testutil.ActiveMember("u3", "carol")
	pending.Status = "pending"
	pending.Platforms["twitch"] = "carol_tw"
	testutil.SeedMember(t, st, pending)

	eng := NewEngine(st, sink, testRules())
	if err := eng.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if sink.AlertCount() != 0 {
		t.Errorf("alerts = %d, want 0", sink.AlertCount())
	}
	for _, id := range []string{"u1", "u2", "u3"} {
		m, err := st.GetMember(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(m.Violations) != 0 {
			t.Errorf("member %s has %d violations, want 0", id, len(m.Violations))
		}
	}
}

func TestRunIgnoresUnknownPlatforms(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}

	m := testutil.ActiveMember("u1", "alice")
	m.Platforms["kick"] = "alice_kick"
	testutil.SeedMember(t, st, m)

	eng := NewEngine(st, sink, testRules())
	if err := eng.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if sink.AlertCount() != 0 {
		t.Errorf("alerts = %d, want 0 for platform without rules", sink.AlertCount())
	}
}

func TestRunOneViolationPerFailingPlatform(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sink := &testutil.RecordingSink{}

	m := testutil.ActiveMember("u1", "alice")
	m.Platforms["youtube"] = "alice_yt"
	m.Platforms["twitch"] = "alice_tw"
	testutil.SeedMember(t, st, m)

	eng := NewEngine(st, sink, testRules())
	if err := eng.Run(ctx); err != nil {
		t.Fatal(err)
	}

	saved, err := st.GetMember(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Violations) != 2 {
		t.Errorf("violations = %d, want 2 (one per failing platform)", len(saved.Violations))
	}
	if sink.AlertCount() != 2 {
		t.Errorf("alerts = %d, want 2", sink.AlertCount())
	}
}
