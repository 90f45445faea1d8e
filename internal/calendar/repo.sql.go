package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusledger/campusledger/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the calendar.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ResolvePeriod maps session/term names to identifiers.
func (r *Repository) ResolvePeriod(ctx context.Context, sessionName, termName string) (Period, error) {
	var p Period
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, t.id
		FROM sessions s
		JOIN terms t ON t.session_id = s.id
		WHERE s.name = $1 AND t.name = $2`, sessionName, termName).Scan(&p.SessionID, &p.TermID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, shared.NewNotFoundError("period", fmt.Sprintf("%s/%s", sessionName, termName))
	}
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

// ListPeriods returns all periods ordered by session start date, then
// term position.
func (r *Repository) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, t.id
		FROM sessions s
		JOIN terms t ON t.session_id = s.id
		ORDER BY s.starts_on, t.position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.SessionID, &p.TermID); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return periods, nil
}

// CurrentPeriod returns the period whose term is flagged current.
func (r *Repository) CurrentPeriod(ctx context.Context) (Period, error) {
	var p Period
	err := r.pool.QueryRow(ctx, `
		SELECT t.session_id, t.id
		FROM terms t
		WHERE t.current
		ORDER BY t.position
		LIMIT 1`).Scan(&p.SessionID, &p.TermID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, shared.NewNotFoundError("period", "current")
	}
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodExists reports whether the session/term pair is known.
func (r *Repository) PeriodExists(ctx context.Context, p Period) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM terms t WHERE t.id = $2 AND t.session_id = $1
		)`, p.SessionID, p.TermID).Scan(&exists)
	return exists, err
}
