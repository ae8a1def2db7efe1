// Package compliance evaluates active members' weekly activity against the
// configured per-platform rules, records violations, and raises alerts.
package compliance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onnwee/creator-hub/backend/config"
	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/notify"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/telemetry"
)

// Engine runs the daily compliance check.
type Engine struct {
	store store.Store
	sink  notify.Sink
	rules map[string]config.PlatformRules
}

// NewEngine wires the engine to its collaborators. The rule map is read-only
// from here on; adding or removing a platform needs no engine change.
func NewEngine(st store.Store, sink notify.Sink, rules map[string]config.PlatformRules) *Engine {
	return &Engine{store: st, sink: sink, rules: rules}
}

// Run checks every active member against the rules of each platform they are
// registered on. For every failing (member, platform) pair it appends one
// compliance violation, persists the member immediately, and emits one alert.
// One member's failure never stops the batch.
func (e *Engine) Run(ctx context.Context) error {
	members, err := e.store.GetAllMembers(ctx)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}

	for _, m := range members {
		if m.Status != member.StatusActive {
			continue
		}
		if err := e.checkMember(ctx, m); err != nil {
			slog.Warn("compliance check failed for member",
				slog.String("user_id", m.UserID), slog.Any("err", err))
		}
	}
	return nil
}

func (e *Engine) checkMember(ctx context.Context, m *member.Member) error {
	for platform := range m.Platforms {
		rules, ok := e.rules[platform]
		if !ok {
			continue
		}
		if m.MeetsRequirements(platform, rules) {
			continue
		}

		var b member.StatBucket
		if w, ok := m.WeeklyStats[platform]; ok && w != nil {
			b = *w
		}
		detail := fmt.Sprintf("failed to meet requirements: %d/%d videos, %.1f/%.1f hours",
			b.Videos, rules.MinWeeklyVideos, b.StreamHours, rules.MinWeeklyStreamHours)

		m.AddViolation(member.Violation{
			Type:     "compliance",
			Platform: platform,
			Details:  detail,
		})
		if err := e.store.SaveMember(ctx, m); err != nil {
			return fmt.Errorf("persist violation: %w", err)
		}
		if telemetry.ComplianceViolations != nil {
			telemetry.ComplianceViolations.Inc()
		}

		body := fmt.Sprintf("%s did not meet requirements for %s\nrequired: %d videos, %.1f hours\nactual: %d videos, %.1f hours",
			m.Username, platform,
			rules.MinWeeklyVideos, rules.MinWeeklyStreamHours,
			b.Videos, b.StreamHours)
		if err := e.sink.Alert(ctx, "Compliance Violation", body); err != nil {
			slog.Warn("compliance alert delivery failed",
				slog.String("user_id", m.UserID), slog.String("platform", platform), slog.Any("err", err))
		}

		slog.Info("compliance violation recorded",
			slog.String("user_id", m.UserID),
			slog.String("platform", platform),
			slog.String("detail", detail))
	}
	return nil
}
