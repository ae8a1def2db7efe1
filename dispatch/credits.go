package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/store"
)

func (d *Dispatcher) handleCreditsBalance(ctx context.Context, cmd Command) (Response, error) {
	userID, err := d.targetUser(cmd)
	if err != nil {
		return Response{}, err
	}
	m, err := d.loadMember(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Text:      fmt.Sprintf("%s has %d credits.", m.Username, m.Credits),
		Ephemeral: true,
	}, nil
}

func (d *Dispatcher) handleCreditsAdd(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	userID, err := argString(cmd, "user")
	if err != nil {
		return Response{}, err
	}
	amount, err := argInt(cmd, "amount", 1, 0)
	if err != nil {
		return Response{}, err
	}
	reason, err := argString(cmd, "reason")
	if err != nil {
		return Response{}, err
	}

	m, err := d.loadMember(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	newBalance := m.AddCredits(amount)
	if err := d.store.SaveMember(ctx, m); err != nil {
		return Response{}, err
	}
	if err := d.store.AppendCreditEntry(ctx, store.CreditEntry{
		UserID:      userID,
		Amount:      amount,
		Type:        "add",
		Reason:      reason,
		PerformedBy: cmd.CallerID,
		NewBalance:  newBalance,
	}); err != nil {
		return Response{}, err
	}

	return Response{
		Text: fmt.Sprintf("Added %d credits to %s.\nReason: %s\nNew balance: %d", amount, m.Username, reason, newBalance),
	}, nil
}

func (d *Dispatcher) handleCreditsDeduct(ctx context.Context, cmd Command) (Response, error) {
	if err := d.requireManagement(cmd); err != nil {
		return Response{}, err
	}
	userID, err := argString(cmd, "user")
	if err != nil {
		return Response{}, err
	}
	amount, err := argInt(cmd, "amount", 1, 0)
	if err != nil {
		return Response{}, err
	}
	reason, err := argString(cmd, "reason")
	if err != nil {
		return Response{}, err
	}

	m, err := d.loadMember(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	newBalance, err := m.DeductCredits(amount)
	if errors.Is(err, member.ErrInsufficientCredits) {
		// Expected outcome, not an error: report and leave the balance alone.
		return Response{
			Text:      fmt.Sprintf("%s does not have enough credits. Current balance: %d", m.Username, m.Credits),
			Ephemeral: true,
		}, nil
	}
	if err != nil {
		return Response{}, err
	}
	if err := d.store.SaveMember(ctx, m); err != nil {
		return Response{}, err
	}
	if err := d.store.AppendCreditEntry(ctx, store.CreditEntry{
		UserID:      userID,
		Amount:      -amount,
		Type:        "deduct",
		Reason:      reason,
		PerformedBy: cmd.CallerID,
		NewBalance:  newBalance,
	}); err != nil {
		return Response{}, err
	}

	return Response{
		Text: fmt.Sprintf("Deducted %d credits from %s.\nReason: %s\nNew balance: %d", amount, m.Username, reason, newBalance),
	}, nil
}

func (d *Dispatcher) handleCreditsHistory(ctx context.Context, cmd Command) (Response, error) {
	userID, err := d.targetUser(cmd)
	if err != nil {
		return Response{}, err
	}
	history, err := d.store.CreditHistoryByUser(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if len(history) == 0 {
		return Response{Text: "No transaction history found.", Ephemeral: true}, nil
	}

	// Last 10 entries, newest first.
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	var b strings.Builder
	b.WriteString("Credit history (most recent first):\n")
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		sign := ""
		if e.Amount >= 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s%d - %s - balance %d - %s\n", sign, e.Amount, e.Reason, e.NewBalance, formatTimestamp(e.Timestamp))
	}
	return Response{Text: b.String(), Ephemeral: true}, nil
}
