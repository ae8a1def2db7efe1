package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/ticket"
)

// Memory is a mutex-guarded in-memory Store used by tests and by the
// STORE_BACKEND=memory dev mode. Documents are deep-copied through JSON on
// the way in and out so callers never share mutable state with the store.
type Memory struct {
	mu      sync.Mutex
	members map[string][]byte
	tickets map[string][]byte
	history []CreditEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		members: map[string][]byte{},
		tickets: map[string][]byte{},
	}
}

func (s *Memory) Ping(context.Context) error { return nil }

// --- members ---------------------------------------------------------------

func (s *Memory) GetMember(_ context.Context, userID string) (*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.members[userID]
	if !ok {
		return nil, ErrNotFound
	}
	var m member.Member
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Memory) GetAllMembers(context.Context) (map[string]*member.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*member.Member, len(s.members))
	for id, doc := range s.members {
		var m member.Member
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		out[id] = &m
	}
	return out, nil
}

func (s *Memory) SaveMember(_ context.Context, m *member.Member) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.UserID] = doc
	return nil
}

func (s *Memory) DeleteMember(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, userID)
	return nil
}

// --- tickets ---------------------------------------------------------------

func (s *Memory) GetTicket(_ context.Context, id string) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	var t ticket.Ticket
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Memory) GetAllTickets(context.Context) (map[string]*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*ticket.Ticket, len(s.tickets))
	for id, doc := range s.tickets {
		var t ticket.Ticket
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, err
		}
		out[id] = &t
	}
	return out, nil
}

func (s *Memory) TicketsByUser(ctx context.Context, userID string) ([]*ticket.Ticket, error) {
	return s.filterTickets(ctx, func(t *ticket.Ticket) bool { return t.UserID == userID })
}

func (s *Memory) TicketsByStatus(ctx context.Context, status string) ([]*ticket.Ticket, error) {
	return s.filterTickets(ctx, func(t *ticket.Ticket) bool { return t.Status == status })
}

func (s *Memory) OpenTicketFor(ctx context.Context, userID, ticketType string) (*ticket.Ticket, error) {
	matches, err := s.filterTickets(ctx, func(t *ticket.Ticket) bool {
		return t.UserID == userID && t.Type == ticketType && t.Status != ticket.StatusClosed
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

func (s *Memory) filterTickets(ctx context.Context, keep func(*ticket.Ticket) bool) ([]*ticket.Ticket, error) {
	all, err := s.GetAllTickets(ctx)
	if err != nil {
		return nil, err
	}
	var out []*ticket.Ticket
	for _, t := range all {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Memory) SaveTicket(_ context.Context, t *ticket.Ticket) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = doc
	return nil
}

func (s *Memory) DeleteTicket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}

// --- credit history --------------------------------------------------------

func (s *Memory) AppendCreditEntry(_ context.Context, e CreditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
	return nil
}

func (s *Memory) CreditHistoryByUser(_ context.Context, userID string) ([]CreditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CreditEntry
	for _, e := range s.history {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
