// Package ticket models a channel-bound workflow unit (application, issue,
// credit, promotion or support request) and its state machine.
//
// Tickets move open -> in-progress -> closed. In-progress is reachable only
// through assignment; closed is terminal. Closing an already-closed ticket or
// assigning a closed one is rejected, not silently absorbed, so callers learn
// they acted on stale state.
package ticket

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ticket types.
const (
	TypeApplication = "application"
	TypeIssue       = "issue"
	TypeCredit      = "credit"
	TypePromotion   = "promotion"
	TypeSupport     = "support"
)

// Ticket statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in-progress"
	StatusClosed     = "closed"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	ErrAlreadyClosed = errors.New("ticket already closed")
	ErrTicketClosed  = errors.New("ticket is closed")
)

// Message is one append-only entry in a ticket's conversation log.
type Message struct {
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ApplicationMeta carries the fields of an application ticket.
type ApplicationMeta struct {
	Platform string `json:"platform"`
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

// SupportMeta carries the fields of issue/credit/promotion/support tickets.
type SupportMeta struct {
	Description string `json:"description,omitempty"`
}

// CloseInfo records who closed the ticket and why.
type CloseInfo struct {
	ClosedBy string `json:"closed_by"`
	Reason   string `json:"reason,omitempty"`
}

// Metadata is the per-type payload. Exactly one variant pointer is set at
// construction (plus Close once the ticket is closed).
type Metadata struct {
	Application *ApplicationMeta `json:"application,omitempty"`
	Support     *SupportMeta     `json:"support,omitempty"`
	Close       *CloseInfo       `json:"close,omitempty"`
}

// Ticket is a workflow unit bound to a chat channel.
type Ticket struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username,omitempty"`
	ChannelID string     `json:"channel_id"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Messages  []Message  `json:"messages,omitempty"`

	// AssignedTo is the staff member working the ticket, empty if unassigned.
	AssignedTo string   `json:"assigned_to,omitempty"`
	Metadata   Metadata `json:"metadata"`
}

func validType(t string) bool {
	switch t {
	case TypeApplication, TypeIssue, TypeCredit, TypePromotion, TypeSupport:
		return true
	}
	return false
}

func validPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// New creates an open ticket with a fresh uuid. The metadata variant must
// match the ticket type: application tickets require ApplicationMeta, every
// other type takes an optional SupportMeta.
func New(ticketType, userID, username, channelID string, meta Metadata) (*Ticket, error) {
	if !validType(ticketType) {
		return nil, fmt.Errorf("unknown ticket type %q", ticketType)
	}
	if userID == "" {
		return nil, errors.New("ticket owner required")
	}
	if ticketType == TypeApplication {
		if meta.Application == nil || meta.Application.Platform == "" || meta.Application.Username == "" {
			return nil, errors.New("application ticket requires platform and username metadata")
		}
	} else if meta.Application != nil {
		return nil, fmt.Errorf("%s ticket cannot carry application metadata", ticketType)
	}
	return &Ticket{
		ID:        uuid.NewString(),
		Type:      ticketType,
		UserID:    userID,
		Username:  username,
		ChannelID: channelID,
		Status:    StatusOpen,
		Priority:  PriorityNormal,
		CreatedAt: time.Now().UTC(),
		Metadata:  meta,
	}, nil
}

// AddMessage appends to the conversation log.
func (t *Ticket) AddMessage(author, content string) {
	t.Messages = append(t.Messages, Message{
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// Close transitions the ticket to closed and records who closed it and why.
// A second close is rejected with ErrAlreadyClosed.
func (t *Ticket) Close(closedBy, reason string) error {
	if t.Status == StatusClosed {
		return ErrAlreadyClosed
	}
	now := time.Now().UTC()
	t.Status = StatusClosed
	t.ClosedAt = &now
	t.Metadata.Close = &CloseInfo{ClosedBy: closedBy, Reason: reason}
	return nil
}

// Assign sets the assignee and moves an open ticket to in-progress.
// Assigning a closed ticket is rejected with ErrTicketClosed.
func (t *Ticket) Assign(staffID string) error {
	if t.Status == StatusClosed {
		return ErrTicketClosed
	}
	t.AssignedTo = staffID
	t.Status = StatusInProgress
	return nil
}

// SetPriority changes the priority; it is mutable independently of status.
func (t *Ticket) SetPriority(priority string) error {
	if !validPriority(priority) {
		return fmt.Errorf("unknown priority %q", priority)
	}
	t.Priority = priority
	return nil
}

// Summary is a compact view used by list commands and the management API.
type Summary struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	UserID       string `json:"user_id"`
	Username     string `json:"username,omitempty"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	MessageCount int    `json:"message_count"`
	AssignedTo   string `json:"assigned_to,omitempty"`
}

// Summarize builds the compact view.
func (t *Ticket) Summarize() Summary {
	return Summary{
		ID:           t.ID,
		Type:         t.Type,
		UserID:       t.UserID,
		Username:     t.Username,
		Status:       t.Status,
		Priority:     t.Priority,
		MessageCount: len(t.Messages),
		AssignedTo:   t.AssignedTo,
	}
}
