// Package member holds the persistent profile of a tracked streamer and the
// operations the rest of the service performs on it: credit balance changes,
// activity stat ingestion, the weekly/monthly stat cycle, and the compliance
// requirement check.
package member

import (
	"errors"
	"time"

	"github.com/onnwee/creator-hub/backend/config"
)

// Member lifecycle statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// ErrInsufficientCredits is returned by DeductCredits when the balance cannot
// cover the requested amount. It is an expected, user-facing condition.
var ErrInsufficientCredits = errors.New("insufficient credits")

// StatBucket accumulates activity counters for one platform over one window
// (weekly or monthly).
type StatBucket struct {
	Videos      int     `json:"videos"`
	StreamHours float64 `json:"stream_hours"`
	Views       int64   `json:"views"`
	Engagement  int64   `json:"engagement"`
}

// LifetimeStats holds the cumulative counters that are never reset.
type LifetimeStats struct {
	TotalVideos      int     `json:"total_videos"`
	TotalStreamHours float64 `json:"total_stream_hours"`
	TotalViews       int64   `json:"total_views"`
	TotalEngagement  int64   `json:"total_engagement"`
}

// Violation is one append-only entry in a member's violation log.
type Violation struct {
	Type      string    `json:"type"`
	Platform  string    `json:"platform,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Achievement is one append-only entry in a member's achievement log.
type Achievement struct {
	Name      string    `json:"name"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Member is a tracked streamer's persistent record. It is stored as a single
// document keyed by UserID; mutate a copy loaded from the store and save it back.
type Member struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`

	// Platforms maps a platform key (youtube/twitch/tiktok) to the member's
	// handle or channel id on that platform.
	Platforms map[string]string `json:"platforms"`

	Credits  int       `json:"credits"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`

	Stats        LifetimeStats          `json:"stats"`
	WeeklyStats  map[string]*StatBucket `json:"weekly_stats,omitempty"`
	MonthlyStats map[string]*StatBucket `json:"monthly_stats,omitempty"`

	Violations   []Violation   `json:"violations,omitempty"`
	Achievements []Achievement `json:"achievements,omitempty"`
}

// New creates a pending member profile.
func New(userID, username string) *Member {
	return &Member{
		UserID:    userID,
		Username:  username,
		Platforms: map[string]string{},
		Status:    StatusPending,
		JoinedAt:  time.Now().UTC(),
	}
}

// Approve activates the member and grants the starting credit balance.
func (m *Member) Approve(startingCredits int) {
	m.Status = StatusActive
	if startingCredits > 0 {
		m.Credits += startingCredits
	}
}

// AddCredits increases the balance and returns the new balance.
// The amount must be positive; callers validate at the boundary.
func (m *Member) AddCredits(amount int) int {
	m.Credits += amount
	return m.Credits
}

// DeductCredits decreases the balance if it covers the amount. On
// ErrInsufficientCredits the balance is untouched.
func (m *Member) DeductCredits(amount int) (int, error) {
	if m.Credits < amount {
		return m.Credits, ErrInsufficientCredits
	}
	m.Credits -= amount
	return m.Credits, nil
}

// AddViolation appends a timestamped entry to the violation log.
func (m *Member) AddViolation(v Violation) {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	m.Violations = append(m.Violations, v)
}

// AddAchievement appends a timestamped entry to the achievement log.
func (m *Member) AddAchievement(a Achievement) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	m.Achievements = append(m.Achievements, a)
}

// weekly returns the weekly bucket for platform, creating it if absent.
func (m *Member) weekly(platform string) *StatBucket {
	if m.WeeklyStats == nil {
		m.WeeklyStats = map[string]*StatBucket{}
	}
	b, ok := m.WeeklyStats[platform]
	if !ok {
		b = &StatBucket{}
		m.WeeklyStats[platform] = b
	}
	return b
}

// RecordVideo counts one uploaded video against the weekly and lifetime stats.
func (m *Member) RecordVideo(platform string) {
	m.weekly(platform).Videos++
	m.Stats.TotalVideos++
}

// RecordStreamTime adds finished stream hours and viewer counts to the weekly
// and lifetime stats.
func (m *Member) RecordStreamTime(platform string, hours float64, views int64) {
	b := m.weekly(platform)
	b.StreamHours += hours
	b.Views += views
	m.Stats.TotalStreamHours += hours
	m.Stats.TotalViews += views
}

// RecordEngagement adds engagement counts (likes, comments, chat messages).
func (m *Member) RecordEngagement(platform string, n int64) {
	m.weekly(platform).Engagement += n
	m.Stats.TotalEngagement += n
}

// MeetsRequirements compares the member's current weekly stats for platform
// against the configured thresholds. Missing stats count as zero; a threshold
// of zero is vacuously satisfied; meeting a threshold exactly passes.
func (m *Member) MeetsRequirements(platform string, rules config.PlatformRules) bool {
	var b StatBucket
	if m.WeeklyStats != nil {
		if w, ok := m.WeeklyStats[platform]; ok && w != nil {
			b = *w
		}
	}
	if rules.MinWeeklyVideos > 0 && b.Videos < rules.MinWeeklyVideos {
		return false
	}
	if rules.MinWeeklyStreamHours > 0 && b.StreamHours < rules.MinWeeklyStreamHours {
		return false
	}
	return true
}

// HasWeeklyActivity reports whether any platform shows videos or stream hours
// this week. Views alone do not count as activity.
func (m *Member) HasWeeklyActivity() bool {
	for _, b := range m.WeeklyStats {
		if b != nil && (b.Videos > 0 || b.StreamHours > 0) {
			return true
		}
	}
	return false
}

// RolloverWeekly folds each platform's weekly bucket into the corresponding
// monthly bucket field-wise, then clears the weekly stats. Running it on an
// empty week leaves the monthly stats unchanged.
func (m *Member) RolloverWeekly() {
	for platform, w := range m.WeeklyStats {
		if w == nil {
			continue
		}
		if m.MonthlyStats == nil {
			m.MonthlyStats = map[string]*StatBucket{}
		}
		mb, ok := m.MonthlyStats[platform]
		if !ok {
			mb = &StatBucket{}
			m.MonthlyStats[platform] = mb
		}
		mb.Videos += w.Videos
		mb.StreamHours += w.StreamHours
		mb.Views += w.Views
		mb.Engagement += w.Engagement
	}
	m.WeeklyStats = map[string]*StatBucket{}
}

// ResetMonthly clears the monthly stats.
func (m *Member) ResetMonthly() {
	m.MonthlyStats = map[string]*StatBucket{}
}

// Summary is a compact view of a member used by list commands and reports.
type Summary struct {
	UserID           string   `json:"user_id"`
	Username         string   `json:"username"`
	Credits          int      `json:"credits"`
	Status           string   `json:"status"`
	Platforms        []string `json:"platforms"`
	ViolationCount   int      `json:"violation_count"`
	AchievementCount int      `json:"achievement_count"`
}

// Summarize builds the compact view.
func (m *Member) Summarize() Summary {
	platforms := make([]string, 0, len(m.Platforms))
	for p := range m.Platforms {
		platforms = append(platforms, p)
	}
	return Summary{
		UserID:           m.UserID,
		Username:         m.Username,
		Credits:          m.Credits,
		Status:           m.Status,
		Platforms:        platforms,
		ViolationCount:   len(m.Violations),
		AchievementCount: len(m.Achievements),
	}
}
