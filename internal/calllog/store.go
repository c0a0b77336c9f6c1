// Package calllog keeps a relational ledger of every handled call, so the
// owner dashboard can answer "what happened while I was on the tools".
package calllog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome is how a call ended.
type Outcome string

const (
	OutcomeBooked            Outcome = "booked"
	OutcomeManualFollowUp    Outcome = "manual_followup"
	OutcomeEscalated         Outcome = "escalated"
	OutcomeQuoteLead         Outcome = "quote_lead"
	OutcomeRescheduleRequest Outcome = "reschedule_request"
	OutcomeSilenceHangup     Outcome = "silence_hangup"
	OutcomeError             Outcome = "error"
)

// CallRecord is one completed call.
type CallRecord struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	CallID      string     `json:"call_id"`
	CallerPhone string     `json:"caller_phone"`
	Intent      string     `json:"intent"`
	Outcome     Outcome    `json:"outcome"`
	Name        string     `json:"name,omitempty"`
	Job         string     `json:"job,omitempty"`
	Address     string     `json:"address,omitempty"`
	BookedStart *time.Time `json:"booked_start,omitempty"`
	EventID     string     `json:"event_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists call records in Postgres.
type Store struct {
	db querier
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("calllog: pgx pool required")
	}
	return &Store{db: pool}
}

// newStoreWithDB allows injecting a mock database for testing.
func newStoreWithDB(db querier) *Store {
	if db == nil {
		panic("calllog: db required")
	}
	return &Store{db: db}
}

// Record upserts the outcome row for a call. A webhook retry that replays the
// final turn lands on the same call_id and overwrites rather than double
// counting.
func (s *Store) Record(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if rec.TenantID == "" || rec.CallID == "" {
		return CallRecord{}, fmt.Errorf("calllog: tenant id and call id are required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
		INSERT INTO call_records (id, tenant_id, call_id, caller_phone, intent, outcome, customer_name, job, address, booked_start, event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (call_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			customer_name = EXCLUDED.customer_name,
			job = EXCLUDED.job,
			address = EXCLUDED.address,
			booked_start = EXCLUDED.booked_start,
			event_id = EXCLUDED.event_id
		RETURNING id, created_at
	`
	if err := s.db.QueryRow(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.CallID,
		rec.CallerPhone,
		rec.Intent,
		string(rec.Outcome),
		rec.Name,
		rec.Job,
		rec.Address,
		rec.BookedStart,
		rec.EventID,
	).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return CallRecord{}, fmt.Errorf("calllog: insert call record: %w", err)
	}
	return rec, nil
}

// Recent returns the newest records for a tenant, most recent first.
func (s *Store) Recent(ctx context.Context, tenantID string, limit int) ([]CallRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, tenant_id, call_id, caller_phone, intent, outcome, customer_name, job, address, booked_start, event_id, created_at
		FROM call_records
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("calllog: list call records: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.CallID,
			&rec.CallerPhone,
			&rec.Intent,
			&rec.Outcome,
			&rec.Name,
			&rec.Job,
			&rec.Address,
			&rec.BookedStart,
			&rec.EventID,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("calllog: scan call record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calllog: iterate call records: %w", err)
	}
	return out, nil
}
