package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/store"
	"github.com/onnwee/creator-hub/backend/ticket"
)

func (d *Dispatcher) handleStreamerProfile(ctx context.Context, cmd Command) (Response, error) {
	userID, err := d.targetUser(cmd)
	if err != nil {
		return Response{}, err
	}
	m, err := d.loadMember(ctx, userID)
	if err != nil {
		return Response{}, err
	}

	s := m.Summarize()
	sort.Strings(s.Platforms)
	var b strings.Builder
	fmt.Fprintf(&b, "Profile for %s\n", s.Username)
	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	fmt.Fprintf(&b, "Credits: %d\n", s.Credits)
	fmt.Fprintf(&b, "Platforms: %s\n", strings.Join(s.Platforms, ", "))
	fmt.Fprintf(&b, "Lifetime: %d videos, %.1f stream hours, %d views\n",
		m.Stats.TotalVideos, m.Stats.TotalStreamHours, m.Stats.TotalViews)
	fmt.Fprintf(&b, "Violations: %d, Achievements: %d", s.ViolationCount, s.AchievementCount)
	return Response{Text: b.String(), Ephemeral: true}, nil
}

// handleStreamerApprove activates an applicant: the profile is created if it
// does not exist yet, platform handles from the application are registered,
// the starting credit grant is issued, and the open application ticket (if
// any) is closed and scheduled for purge.
func (d *Dispatcher) handleStreamerApprove(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	userID, err := argString(cmd, "user")
	if err != nil {
		return Response{}, err
	}
	username := argStringOpt(cmd, "username")

	m, err := d.store.GetMember(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		if username == "" {
			username = userID
		}
		m = member.New(userID, username)
	} else if err != nil {
		return Response{}, err
	}
	if m.Status == member.StatusActive {
		return Response{Text: fmt.Sprintf("%s is already an active streamer.", m.Username), Ephemeral: true}, nil
	}

	// Fold the application ticket into the profile before activation.
	appTicket, err := d.store.OpenTicketFor(ctx, userID, ticket.TypeApplication)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Response{}, err
	}
	if appTicket != nil && appTicket.Metadata.Application != nil {
		app := appTicket.Metadata.Application
		if m.Platforms == nil {
			m.Platforms = map[string]string{}
		}
		m.Platforms[app.Platform] = app.Username
	}

	grant := d.cfg.Credits.ApprovalGrant
	m.Approve(grant)
	if err := d.store.SaveMember(ctx, m); err != nil {
		return Response{}, err
	}
	if grant > 0 {
		if err := d.store.AppendCreditEntry(ctx, store.CreditEntry{
			UserID:      userID,
			Amount:      grant,
			Type:        "add",
			Reason:      "approval starting grant",
			PerformedBy: cmd.CallerID,
			NewBalance:  m.Credits,
		}); err != nil {
			return Response{}, err
		}
	}

	if appTicket != nil {
		if err := appTicket.Close(cmd.CallerID, "application approved"); err == nil {
			if err := d.store.SaveTicket(ctx, appTicket); err != nil {
				return Response{}, err
			}
			d.purge(ctx, appTicket.ID, appTicket.ChannelID)
		}
	}

	if d.cfg.ApplicationLog != "" {
		msg := fmt.Sprintf("%s was approved as a streamer by %s.", m.Username, cmd.CallerID)
		if err := d.sink.Post(ctx, d.cfg.ApplicationLog, msg); err != nil {
			slog.Warn("approval notification failed", slog.String("user_id", userID), slog.Any("err", err))
		}
	}

	return Response{Text: fmt.Sprintf("Approved %s. Starting balance: %d credits.", m.Username, m.Credits)}, nil
}

func (d *Dispatcher) handleStreamerSuspend(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	userID, err := argString(cmd, "user")
	if err != nil {
		return Response{}, err
	}
	reason := argStringOpt(cmd, "reason")

	m, err := d.loadMember(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if m.Status == member.StatusSuspended {
		return Response{Text: fmt.Sprintf("%s is already suspended.", m.Username), Ephemeral: true}, nil
	}
	m.Status = member.StatusSuspended
	m.AddViolation(member.Violation{Type: "suspension", Details: reason})
	if err := d.store.SaveMember(ctx, m); err != nil {
		return Response{}, err
	}

	body := fmt.Sprintf("%s was suspended by %s.", m.Username, cmd.CallerID)
	if reason != "" {
		body += "\nReason: " + reason
	}
	if err := d.sink.Alert(ctx, "Streamer Suspended", body); err != nil {
		slog.Warn("suspension alert failed", slog.String("user_id", userID), slog.Any("err", err))
	}
	return Response{Text: fmt.Sprintf("Suspended %s.", m.Username)}, nil
}

func (d *Dispatcher) handleStreamerReactivate(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	userID, err := argString(cmd, "user")
	if err != nil {
		return Response{}, err
	}
	m, err := d.loadMember(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if m.Status == member.StatusActive {
		return Response{Text: fmt.Sprintf("%s is already active.", m.Username), Ephemeral: true}, nil
	}
	m.Status = member.StatusActive
	if err := d.store.SaveMember(ctx, m); err != nil {
		return Response{}, err
	}
	return Response{Text: fmt.Sprintf("Reactivated %s.", m.Username)}, nil
}

// handleStreamerAchievement records a named achievement on the profile and
// grants the configured goal-achievement credit award.
func (d *Dispatcher) handleStreamerAchievement(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	userID, err := argString(cmd, "user")
	if err != nil {
		return Response{}, err
	}
	name, err := argString(cmd, "name")
	if err != nil {
		return Response{}, err
	}
	details := argStringOpt(cmd, "details")

	m, err := d.loadMember(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	m.AddAchievement(member.Achievement{Name: name, Details: details})

	award := d.cfg.Credits.GoalAchievement
	balance := m.Credits
	if award > 0 {
		balance = m.AddCredits(award)
	}
	if err := d.store.SaveMember(ctx, m); err != nil {
		return Response{}, err
	}
	if award > 0 {
		if err := d.store.AppendCreditEntry(ctx, store.CreditEntry{
			UserID:      userID,
			Amount:      award,
			Type:        "add",
			Reason:      "achievement: " + name,
			PerformedBy: cmd.CallerID,
			NewBalance:  balance,
		}); err != nil {
			return Response{}, err
		}
	}

	return Response{
		Text: fmt.Sprintf("Recorded achievement %q for %s. Awarded %d credits (balance %d).", name, m.Username, award, balance),
	}, nil
}

func (d *Dispatcher) handleStreamerList(ctx context.Context, cmd Command) (Response, error) {
	statusFilter := argStringOpt(cmd, "status")
	members, err := d.store.GetAllMembers(ctx)
	if err != nil {
		return Response{}, err
	}

	var summaries []member.Summary
	for _, m := range members {
		if statusFilter != "" && m.Status != statusFilter {
			continue
		}
		summaries = append(summaries, m.Summarize())
	}
	if len(summaries) == 0 {
		return Response{Text: "No streamers found.", Ephemeral: true}, nil
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Username < summaries[j].Username })

	var b strings.Builder
	fmt.Fprintf(&b, "Streamers (%d):\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(&b, "%s - %s - %d credits\n", s.Username, s.Status, s.Credits)
	}
	return Response{Text: b.String(), Ephemeral: true}, nil
}
