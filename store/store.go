// Package store is the persistence gateway for the three durable collections:
// members keyed by user id, tickets keyed by ticket id, and the append-only
// credit history. Two implementations exist: Postgres for real deployments
// and an in-memory store for tests and ephemeral dev runs.
//
// Unlike the whole-snapshot layout this replaces, every save writes a single
// keyed row, so concurrent writers on different keys cannot clobber each
// other. Writers racing on the same key still follow last-write-wins.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/ticket"
)

// ErrNotFound marks a missing member or ticket. Callers distinguish it from
// infrastructure failures when shaping user-facing responses.
var ErrNotFound = errors.New("not found")

// CreditEntry is one immutable row of the credit history ledger.
type CreditEntry struct {
	UserID      string    `json:"user_id"`
	Amount      int       `json:"amount"` // signed: negative for deductions
	Type        string    `json:"type"`   // add | deduct
	Reason      string    `json:"reason"`
	PerformedBy string    `json:"performed_by"`
	NewBalance  int       `json:"new_balance"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store is the full persistence gateway contract.
type Store interface {
	GetMember(ctx context.Context, userID string) (*member.Member, error)
	GetAllMembers(ctx context.Context) (map[string]*member.Member, error)
	SaveMember(ctx context.Context, m *member.Member) error
	DeleteMember(ctx context.Context, userID string) error

	GetTicket(ctx context.Context, id string) (*ticket.Ticket, error)
	GetAllTickets(ctx context.Context) (map[string]*ticket.Ticket, error)
	TicketsByUser(ctx context.Context, userID string) ([]*ticket.Ticket, error)
	TicketsByStatus(ctx context.Context, status string) ([]*ticket.Ticket, error)
	// OpenTicketFor returns the open or in-progress ticket of the given type
	// owned by userID, or ErrNotFound. It backs the one-open-ticket-per-
	// (owner, type) rule enforced at creation time.
	OpenTicketFor(ctx context.Context, userID, ticketType string) (*ticket.Ticket, error)
	SaveTicket(ctx context.Context, t *ticket.Ticket) error
	DeleteTicket(ctx context.Context, id string) error

	AppendCreditEntry(ctx context.Context, e CreditEntry) error
	CreditHistoryByUser(ctx context.Context, userID string) ([]CreditEntry, error)

	Ping(ctx context.Context) error
}
