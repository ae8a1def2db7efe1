// Package jobs drives the periodic maintenance work: the daily compliance
// check, the weekly stat rollover, the monthly stat reset, the daily
// inactivity scan, and the sweep of stale closed tickets. A single goroutine
// evaluates due triggers once per minute
// in a fixed order, so a weekly rollover that coincides with a monthly reset
// always runs first (rollover feeds the monthly buckets the reset clears).
//
// Triggers are stateless: there is no persisted last-run marker. Each job
// tolerates partial failure; one member's error is logged and the batch
// continues.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/creator-hub/backend/compliance"
	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/notify"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/telemetry"
	"github.com/onnwee/creator-hub/backend/ticket"
)

// Scheduler owns the periodic jobs and their trigger times.
type Scheduler struct {
	store    store.Store
	sink     notify.Sink
	channels notify.ChannelProvider
	eng      *compliance.Engine

	complianceHour int
	inactivityHour int
	weeklyBonus    int

	// now is swappable for tests.
	now func() time.Time

	lastFired time.Time
}

// NewScheduler builds a scheduler. Hours are in UTC; weeklyBonus is the
// credit amount granted per active week, 0 to disable.
func NewScheduler(st store.Store, sink notify.Sink, channels notify.ChannelProvider, eng *compliance.Engine, complianceHour, inactivityHour, weeklyBonus int) *Scheduler {
	return &Scheduler{
		store:          st,
		sink:           sink,
		channels:       channels,
		eng:            eng,
		complianceHour: complianceHour,
		inactivityHour: inactivityHour,
		weeklyBonus:    weeklyBonus,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the scheduling loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("scheduler starting",
		slog.Int("compliance_hour", s.complianceHour),
		slog.Int("inactivity_hour", s.inactivityHour))

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunDue(ctx, s.now())
		}
	}
}

// RunDue fires every job whose trigger minute matches now. It is exported so
// tests can drive the clock directly. Repeated calls within the same minute
// are deduplicated; triggers are checked in rollover -> reset -> sweep ->
// compliance -> inactivity order.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) {
	minute := now.Truncate(time.Minute)
	if minute.Equal(s.lastFired) {
		return
	}

	fired := false
	runJob := func(name string, due bool, fn func(context.Context) error) {
		if !due {
			return
		}
		fired = true
		telemetry.CountJobRun(name)
		slog.Info("job starting", slog.String("job", name))
		if err := fn(ctx); err != nil {
			telemetry.CountJobError(name)
			slog.Error("job failed", slog.String("job", name), slog.Any("err", err))
			return
		}
		slog.Info("job completed", slog.String("job", name))
	}

	startOfDay := now.Hour() == 0 && now.Minute() == 0
	runJob("weekly_rollover", now.Weekday() == time.Monday && startOfDay, s.RolloverWeekly)
	runJob("monthly_reset", now.Day() == 1 && startOfDay, s.ResetMonthly)
	runJob("ticket_sweep", now.Hour() == 0 && now.Minute() == 5, s.SweepClosedTickets)
	runJob("compliance_check", now.Hour() == s.complianceHour && now.Minute() == 0, s.eng.Run)
	runJob("inactivity_check", now.Hour() == s.inactivityHour && now.Minute() == 0, s.CheckInactivity)

	if fired {
		s.lastFired = minute
		s.refreshGauges(ctx)
	}
}

// RolloverWeekly folds every member's weekly stats into their monthly buckets
// and clears the weekly stats. Active members who showed activity during the
// closing week are granted the weekly bonus before the fold.
func (s *Scheduler) RolloverWeekly(ctx context.Context) error {
	members, err := s.store.GetAllMembers(ctx)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	for _, m := range members {
		earnedBonus := s.weeklyBonus > 0 && m.Status == member.StatusActive && m.HasWeeklyActivity()
		if earnedBonus {
			m.AddCredits(s.weeklyBonus)
		}
		m.RolloverWeekly()
		if err := s.store.SaveMember(ctx, m); err != nil {
			slog.Warn("weekly rollover: save failed",
				slog.String("user_id", m.UserID), slog.Any("err", err))
			continue
		}
		if earnedBonus {
			if err := s.store.AppendCreditEntry(ctx, store.CreditEntry{
				UserID:      m.UserID,
				Amount:      s.weeklyBonus,
				Type:        "add",
				Reason:      "weekly activity bonus",
				PerformedBy: "system",
				NewBalance:  m.Credits,
			}); err != nil {
				slog.Warn("weekly rollover: bonus history append failed",
					slog.String("user_id", m.UserID), slog.Any("err", err))
			}
		}
	}
	return nil
}

// ResetMonthly clears every member's monthly stats.
func (s *Scheduler) ResetMonthly(ctx context.Context) error {
	members, err := s.store.GetAllMembers(ctx)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	for _, m := range members {
		m.ResetMonthly()
		if err := s.store.SaveMember(ctx, m); err != nil {
			slog.Warn("monthly reset: save failed",
				slog.String("user_id", m.UserID), slog.Any("err", err))
		}
	}
	return nil
}

// SweepClosedTickets removes closed tickets whose deferred purge never ran,
// typically because a shutdown cancelled the purge timer. Only tickets closed
// more than an hour ago are touched so a freshly scheduled purge is not raced.
func (s *Scheduler) SweepClosedTickets(ctx context.Context) error {
	tickets, err := s.store.GetAllTickets(ctx)
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	cutoff := s.now().Add(-time.Hour)
	for _, t := range tickets {
		if t.Status != ticket.StatusClosed || t.ClosedAt == nil || t.ClosedAt.After(cutoff) {
			continue
		}
		if err := s.store.DeleteTicket(ctx, t.ID); err != nil {
			slog.Warn("ticket sweep: record delete failed",
				slog.String("ticket_id", t.ID), slog.Any("err", err))
			continue
		}
		if t.ChannelID != "" {
			if err := s.channels.DeleteChannel(ctx, t.ChannelID); err != nil {
				slog.Warn("ticket sweep: channel delete failed",
					slog.String("ticket_id", t.ID), slog.String("channel_id", t.ChannelID), slog.Any("err", err))
			}
		}
		slog.Info("stale closed ticket swept", slog.String("ticket_id", t.ID))
	}
	return nil
}

// CheckInactivity emits one alert for every active member with no videos and
// no stream hours in the current week.
func (s *Scheduler) CheckInactivity(ctx context.Context) error {
	members, err := s.store.GetAllMembers(ctx)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	for _, m := range members {
		if m.Status != member.StatusActive || m.HasWeeklyActivity() {
			continue
		}
		if telemetry.InactivityAlerts != nil {
			telemetry.InactivityAlerts.Inc()
		}
		body := fmt.Sprintf("%s has had no activity this week on any platform.", m.Username)
		if err := s.sink.Alert(ctx, "Inactive Streamer", body); err != nil {
			slog.Warn("inactivity alert delivery failed",
				slog.String("user_id", m.UserID), slog.Any("err", err))
		}
	}
	return nil
}

func (s *Scheduler) refreshGauges(ctx context.Context) {
	members, err := s.store.GetAllMembers(ctx)
	if err == nil {
		active := 0
		for _, m := range members {
			if m.Status == member.StatusActive {
				active++
			}
		}
		telemetry.SetActiveMembers(active)
	}
	tickets, err := s.store.GetAllTickets(ctx)
	if err == nil {
		open := 0
		for _, t := range tickets {
			if t.Status != ticket.StatusClosed {
				open++
			}
		}
		telemetry.SetOpenTickets(open)
	}
}
