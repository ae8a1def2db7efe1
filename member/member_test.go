package member

import (
	"testing"

	"github.com/onnwee/creator-hub/backend/config"
)

func TestDeductCredits(t *testing.T) {
	tests := []struct {
		name        string
		balance     int
		amount      int
		wantBalance int
		wantErr     bool
	}{
		{"covered", 100, 40, 60, false},
		{"exact", 50, 50, 0, false},
		{"insufficient", 30, 40, 30, true},
		{"zero balance", 0, 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("u1", "alice")
			m.Credits = tt.balance
			got, err := m.DeductCredits(tt.amount)
			if tt.wantErr != (err != nil) {
				t.Fatalf("DeductCredits(%d) err = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
			if got != tt.wantBalance || m.Credits != tt.wantBalance {
				t.Errorf("balance = %d (returned %d), want %d", m.Credits, got, tt.wantBalance)
			}
		})
	}
}

func TestAddCredits(t *testing.T) {
	m := New("u1", "alice")
	if got := m.AddCredits(10); got != 10 {
		t.Errorf("AddCredits(10) = %d, want 10", got)
	}
	if got := m.AddCredits(5); got != 15 {
		t.Errorf("AddCredits(5) = %d, want 15", got)
	}
}

func TestMeetsRequirements(t *testing.T) {
	rules := config.PlatformRules{MinWeeklyVideos: 3, MinWeeklyStreamHours: 5}

	tests := []struct {
		name   string
		videos int
		hours  float64
		rules  config.PlatformRules
		want   bool
	}{
		{"both met exactly", 3, 5, rules, true},
		{"both exceeded", 4, 6, rules, true},
		{"videos short", 2, 6, rules, false},
		{"hours short", 4, 4.9, rules, false},
		{"zero thresholds pass anything", 0, 0, config.PlatformRules{}, true},
		{"zero video threshold ignores videos", 0, 10, config.PlatformRules{MinWeeklyStreamHours: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("u1", "alice")
			for i := 0; i < tt.videos; i++ {
				m.RecordVideo("youtube")
			}
			if tt.hours > 0 {
				m.RecordStreamTime("youtube", tt.hours, 0)
			}
			if got := m.MeetsRequirements("youtube", tt.rules); got != tt.want {
				t.Errorf("MeetsRequirements = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeetsRequirementsMissingPlatform(t *testing.T) {
	m := New("u1", "alice")
	m.RecordVideo("twitch")
	if m.MeetsRequirements("youtube", config.PlatformRules{MinWeeklyVideos: 1}) {
		t.Error("stats on another platform should not satisfy youtube requirements")
	}
}

func TestHasWeeklyActivity(t *testing.T) {
	m := New("u1", "alice")
	if m.HasWeeklyActivity() {
		t.Error("fresh member should have no activity")
	}

	m.RecordStreamTime("twitch", 0, 500)
	if m.HasWeeklyActivity() {
		t.Error("views alone should not count as activity")
	}

	m.RecordVideo("youtube")
	if !m.HasWeeklyActivity() {
		t.Error("a video upload should count as activity")
	}

	m2 := New("u2", "bob")
	m2.RecordStreamTime("twitch", 1.5, 0)
	if !m2.HasWeeklyActivity() {
		t.Error("stream hours should count as activity")
	}
}

func TestRolloverWeekly(t *testing.T) {
	m := New("u1", "alice")
	m.RecordVideo("youtube")
	m.RecordVideo("youtube")
	m.RecordStreamTime("twitch", 3, 100)
	m.RecordEngagement("youtube", 7)

	m.RolloverWeekly()

	if len(m.WeeklyStats) != 0 {
		t.Errorf("weekly stats not cleared: %v", m.WeeklyStats)
	}
	yt := m.MonthlyStats["youtube"]
	if yt == nil || yt.Videos != 2 || yt.Engagement != 7 {
		t.Errorf("youtube monthly bucket = %+v, want 2 videos, 7 engagement", yt)
	}
	tw := m.MonthlyStats["twitch"]
	if tw == nil || tw.StreamHours != 3 || tw.Views != 100 {
		t.Errorf("twitch monthly bucket = %+v, want 3 hours, 100 views", tw)
	}

	// Second week accumulates on top of the first.
	m.RecordVideo("youtube")
	m.RolloverWeekly()
	if got := m.MonthlyStats["youtube"].Videos; got != 3 {
		t.Errorf("monthly videos after second rollover = %d, want 3", got)
	}

	// Lifetime stats are untouched by rollover.
	if m.Stats.TotalVideos != 3 {
		t.Errorf("lifetime videos = %d, want 3", m.Stats.TotalVideos)
	}
}

func TestRolloverWeeklyEmptyWeek(t *testing.T) {
	m := New("u1", "alice")
	m.RecordVideo("youtube")
	m.RolloverWeekly()
	m.RolloverWeekly()
	if got := m.MonthlyStats["youtube"].Videos; got != 1 {
		t.Errorf("empty-week rollover changed monthly videos: got %d, want 1", got)
	}
}

func TestResetMonthly(t *testing.T) {
	m := New("u1", "alice")
	m.RecordVideo("youtube")
	m.RolloverWeekly()
	m.ResetMonthly()
	if len(m.MonthlyStats) != 0 {
		t.Errorf("monthly stats not cleared: %v", m.MonthlyStats)
	}
	if m.Stats.TotalVideos != 1 {
		t.Errorf("lifetime videos = %d, want 1", m.Stats.TotalVideos)
	}
}

func TestApprove(t *testing.T) {
	m := New("u1", "alice")
	if m.Status != StatusPending {
		t.Fatalf("new member status = %q, want pending", m.Status)
	}
	m.Approve(50)
	if m.Status != StatusActive || m.Credits != 50 {
		t.Errorf("after approve: status=%q credits=%d, want active/50", m.Status, m.Credits)
	}
}

func TestViolationTimestamps(t *testing.T) {
	m := New("u1", "alice")
	m.AddViolation(Violation{Type: "compliance", Platform: "youtube"})
	if len(m.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(m.Violations))
	}
	if m.Violations[0].Timestamp.IsZero() {
		t.Error("violation timestamp should be set automatically")
	}
}
