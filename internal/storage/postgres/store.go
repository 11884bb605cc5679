// Package postgres implements the scheduling and adoption repositories on
// top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

const (
	uniqueViolation = "23505"

	activeSlotIndex     = "appointments_active_slot_key"
	activeAdoptionIndex = "adoption_requests_active_pet_key"
	userEmailIndex      = "users_email_key"
)

var ErrEmailTaken = errors.New("email already registered")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Appointments() *AppointmentRepo {
	return &AppointmentRepo{conn{pool: s.pool, q: s.pool}}
}

func (s *Store) Adoptions() *AdoptionRepo {
	return &AdoptionRepo{conn{pool: s.pool, q: s.pool}}
}

func (s *Store) Clinic() *ClinicRepo {
	return &ClinicRepo{conn{pool: s.pool, q: s.pool}}
}

// conn is a handle on either the pool or an open transaction.
type conn struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func (c conn) withTx(ctx context.Context, fn func(c conn) error) error {
	if c.inTx {
		return fn(c)
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(conn{pool: c.pool, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", mapConstraint(err))
	}
	return nil
}

func (c conn) insertEvent(ctx context.Context, rec events.Record) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, aggregate, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, rec.EventType, rec.Aggregate, rec.AggregateID, rec.Payload, nullableTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// mapConstraint turns unique violations on the known indexes into the
// domain errors callers match on.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case activeSlotIndex:
		return appointment.ErrSlotTaken
	case activeAdoptionIndex:
		return adoption.ErrActiveRequestExists
	case userEmailIndex:
		return ErrEmailTaken
	}
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// where accumulates positional SQL conditions.
type where struct {
	conds []string
	args  []any
}

// add appends cond, which must contain a single %d for the placeholder.
func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
