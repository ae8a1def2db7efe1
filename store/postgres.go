package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/creator-hub/backend/member"
	"github.com/onnwee/creator-hub/backend/ticket"
)

// Postgres stores each member and ticket as a keyed JSONB document and the
// credit history as typed append-only rows. Schema lives in db/migrations.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// --- members ---------------------------------------------------------------

func (p *Postgres) GetMember(ctx context.Context, userID string) (*member.Member, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM members WHERE user_id=$1`, userID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", userID, err)
	}
	var m member.Member
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("decode member %s: %w", userID, err)
	}
	return &m, nil
}

func (p *Postgres) GetAllMembers(ctx context.Context) (map[string]*member.Member, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT user_id, doc FROM members`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer closeRows(rows)

	out := map[string]*member.Member{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		var m member.Member
		if err := json.Unmarshal(doc, &m); err != nil {
			// A corrupt document should not hide the rest of the collection.
			slog.Warn("skipping undecodable member doc", slog.String("user_id", id), slog.Any("err", err))
			continue
		}
		out[id] = &m
	}
	return out, rows.Err()
}

func (p *Postgres) SaveMember(ctx context.Context, m *member.Member) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode member %s: %w", m.UserID, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO members (user_id, doc, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=NOW()`,
		m.UserID, doc)
	if err != nil {
		return fmt.Errorf("save member %s: %w", m.UserID, err)
	}
	return nil
}

func (p *Postgres) DeleteMember(ctx context.Context, userID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM members WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete member %s: %w", userID, err)
	}
	return nil
}

// --- tickets ---------------------------------------------------------------

func (p *Postgres) GetTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM tickets WHERE id=$1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	var t ticket.Ticket
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", id, err)
	}
	return &t, nil
}

func (p *Postgres) GetAllTickets(ctx context.Context) (map[string]*ticket.Ticket, error) {
	return p.ticketMap(ctx, `SELECT id, doc FROM tickets`)
}

func (p *Postgres) TicketsByUser(ctx context.Context, userID string) ([]*ticket.Ticket, error) {
	return p.ticketList(ctx, `SELECT doc FROM tickets WHERE doc->>'user_id' = $1 ORDER BY doc->>'created_at'`, userID)
}

func (p *Postgres) TicketsByStatus(ctx context.Context, status string) ([]*ticket.Ticket, error) {
	return p.ticketList(ctx, `SELECT doc FROM tickets WHERE doc->>'status' = $1 ORDER BY doc->>'created_at'`, status)
}

func (p *Postgres) OpenTicketFor(ctx context.Context, userID, ticketType string) (*ticket.Ticket, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT doc FROM tickets
		WHERE doc->>'user_id' = $1 AND doc->>'type' = $2 AND doc->>'status' != $3
		LIMIT 1`,
		userID, ticketType, ticket.StatusClosed).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open ticket lookup for %s/%s: %w", userID, ticketType, err)
	}
	var t ticket.Ticket
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &t, nil
}

func (p *Postgres) SaveTicket(ctx context.Context, t *ticket.Ticket) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode ticket %s: %w", t.ID, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO tickets (id, doc, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=NOW()`,
		t.ID, doc)
	if err != nil {
		return fmt.Errorf("save ticket %s: %w", t.ID, err)
	}
	return nil
}

func (p *Postgres) DeleteTicket(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) ticketMap(ctx context.Context, query string, args ...any) (map[string]*ticket.Ticket, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer closeRows(rows)

	out := map[string]*ticket.Ticket{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan ticket row: %w", err)
		}
		var t ticket.Ticket
		if err := json.Unmarshal(doc, &t); err != nil {
			slog.Warn("skipping undecodable ticket doc", slog.String("id", id), slog.Any("err", err))
			continue
		}
		out[id] = &t
	}
	return out, rows.Err()
}

func (p *Postgres) ticketList(ctx context.Context, query string, args ...any) ([]*ticket.Ticket, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer closeRows(rows)

	var out []*ticket.Ticket
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan ticket row: %w", err)
		}
		var t ticket.Ticket
		if err := json.Unmarshal(doc, &t); err != nil {
			slog.Warn("skipping undecodable ticket doc", slog.Any("err", err))
			continue
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// --- credit history --------------------------------------------------------

func (p *Postgres) AppendCreditEntry(ctx context.Context, e CreditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO credit_history (user_id, amount, type, reason, performed_by, new_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.UserID, e.Amount, e.Type, e.Reason, e.PerformedBy, e.NewBalance, e.Timestamp)
	if err != nil {
		return fmt.Errorf("append credit entry for %s: %w", e.UserID, err)
	}
	return nil
}

func (p *Postgres) CreditHistoryByUser(ctx context.Context, userID string) ([]CreditEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id, amount, type, reason, performed_by, new_balance, created_at
		FROM credit_history WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("credit history for %s: %w", userID, err)
	}
	defer closeRows(rows)

	var out []CreditEntry
	for rows.Next() {
		var e CreditEntry
		if err := rows.Scan(&e.UserID, &e.Amount, &e.Type, &e.Reason, &e.PerformedBy, &e.NewBalance, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan credit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", slog.Any("err", err))
	}
}
