package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/onnwee/creator-hub/backend/member"
)

// postReport delivers the report to the reports channel when configured and
// always returns it to the caller as well.
func (d *Dispatcher) postReport(ctx context.Context, text string) Response {
	if d.cfg.ReportsChannel != "" {
		if err := d.sink.Post(ctx, d.cfg.ReportsChannel, text); err != nil {
			slog.Warn("report delivery failed", slog.Any("err", err))
		}
	}
	return Response{Text: text}
}

func (d *Dispatcher) handleReportWeekly(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	members, err := d.store.GetAllMembers(ctx)
	if err != nil {
		return Response{}, err
	}

	var videos, active int
	var hours float64
	var views int64
	for _, m := range members {
		if m.Status != member.StatusActive {
			continue
		}
		active++
		for _, b := range m.WeeklyStats {
			if b == nil {
				continue
			}
			videos += b.Videos
			hours += b.StreamHours
			views += b.Views
		}
	}

	text := fmt.Sprintf("Weekly report\nActive streamers: %d\nVideos: %d\nStream hours: %.1f\nViews: %d",
		active, videos, hours, views)
	return d.postReport(ctx, text), nil
}

func (d *Dispatcher) handleReportMonthly(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	members, err := d.store.GetAllMembers(ctx)
	if err != nil {
		return Response{}, err
	}

	var videos, active int
	var hours float64
	var views int64
	for _, m := range members {
		if m.Status != member.StatusActive {
			continue
		}
		active++
		for _, b := range m.MonthlyStats {
			if b == nil {
				continue
			}
			videos += b.Videos
			hours += b.StreamHours
			views += b.Views
		}
	}

	text := fmt.Sprintf("Monthly report\nActive streamers: %d\nVideos: %d\nStream hours: %.1f\nViews: %d",
		active, videos, hours, views)
	return d.postReport(ctx, text), nil
}

func (d *Dispatcher) handleReportTop(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	count := 5
	if argStringOpt(cmd, "count") != "" {
		n, err := argInt(cmd, "count", 1, 10)
		if err != nil {
			return Response{}, err
		}
		count = n
	}

	members, err := d.store.GetAllMembers(ctx)
	if err != nil {
		return Response{}, err
	}
	var active []*member.Member
	for _, m := range members {
		if m.Status == member.StatusActive {
			active = append(active, m)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Credits != active[j].Credits {
			return active[i].Credits > active[j].Credits
		}
		return active[i].Username < active[j].Username
	})
	if len(active) > count {
		active = active[:count]
	}
	if len(active) == 0 {
		return Response{Text: "No active streamers.", Ephemeral: true}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d streamers by credits:\n", len(active))
	for i, m := range active {
		fmt.Fprintf(&b, "%d. %s - %d credits\n", i+1, m.Username, m.Credits)
	}
	return d.postReport(ctx, b.String()), nil
}

func (d *Dispatcher) handleReportPlatform(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	platform, err := argString(cmd, "platform")
	if err != nil {
		return Response{}, err
	}
	if _, ok := d.cfg.PlatformRules[platform]; !ok {
		return Response{}, usageErrorf("Unknown platform %q.", platform)
	}

	members, err := d.store.GetAllMembers(ctx)
	if err != nil {
		return Response{}, err
	}

	var streamers, videos int
	var hours float64
	var views int64
	for _, m := range members {
		if m.Status != member.StatusActive {
			continue
		}
		if _, ok := m.Platforms[platform]; !ok {
			continue
		}
		streamers++
		if b, ok := m.WeeklyStats[platform]; ok && b != nil {
			videos += b.Videos
			hours += b.StreamHours
			views += b.Views
		}
	}

	text := fmt.Sprintf("Platform report: %s\nStreamers: %d\nWeekly videos: %d\nWeekly stream hours: %.1f\nWeekly views: %d",
		platform, streamers, videos, hours, views)
	return d.postReport(ctx, text), nil
}
