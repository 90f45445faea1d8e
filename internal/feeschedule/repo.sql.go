package feeschedule

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/platform/db"
	"github.com/campusledger/campusledger/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the fee schedule.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, class_level, COALESCE(stream, ''), session_id, term_id, purpose, amount::text, active, created_at`

// UpsertEntry deactivates the current active entry for the identity and
// inserts the new amount as a fresh versioned row, in one transaction.
func (r *Repository) UpsertEntry(ctx context.Context, input UpsertEntryInput) (*Entry, error) {
	var entry *Entry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE fee_schedule_entries
			SET active = FALSE
			WHERE active
			  AND class_level = $1
			  AND COALESCE(stream, '') = $2
			  AND session_id = $3 AND term_id = $4
			  AND purpose = $5`,
			input.ClassLevel, input.Stream, input.SessionID, input.TermID, input.Purpose)
		if err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO fee_schedule_entries (class_level, stream, session_id, term_id, purpose, amount, active)
			VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6::numeric, TRUE)
			RETURNING `+entryColumns,
			input.ClassLevel, input.Stream, input.SessionID, input.TermID, input.Purpose, input.Amount.String())
		e, err := scanEntry(row)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Deactivate retires one entry by ID.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE fee_schedule_entries SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("fee schedule entry", id)
	}
	return nil
}

// GetEntry returns one entry by ID.
func (r *Repository) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM fee_schedule_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NewNotFoundError("fee schedule entry", id)
	}
	return entry, err
}

// ListActiveForPeriod returns active entries for a session/term.
func (r *Repository) ListActiveForPeriod(ctx context.Context, period calendar.Period) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM fee_schedule_entries
		WHERE active AND session_id = $1 AND term_id = $2
		ORDER BY class_level, COALESCE(stream, ''), purpose`,
		period.SessionID, period.TermID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListForPeriod returns all entries for a session/term, newest first.
func (r *Repository) ListForPeriod(ctx context.Context, period calendar.Period) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM fee_schedule_entries
		WHERE session_id = $1 AND term_id = $2
		ORDER BY created_at DESC`,
		period.SessionID, period.TermID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var amount string
	if err := row.Scan(&e.ID, &e.ClassLevel, &e.Stream, &e.SessionID, &e.TermID, &e.Purpose, &amount, &e.Active, &e.CreatedAt); err != nil {
		return nil, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	e.Amount = dec
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
