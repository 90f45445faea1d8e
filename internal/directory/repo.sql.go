package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusledger/campusledger/internal/shared"
)

// Repository provides read access to the student directory. The
// directory is maintained by the admissions system; billing only reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const studentColumns = `id, full_name, class_level, COALESCE(stream, ''), active, created_at`

// Get returns one student by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Student, error) {
	var s Student
	err := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id).
		Scan(&s.ID, &s.FullName, &s.ClassLevel, &s.Stream, &s.Active, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NewNotFoundError("student", id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActive returns every active student.
func (r *Repository) ListActive(ctx context.Context) ([]Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students WHERE active ORDER BY class_level, full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

// ListActiveByClass returns active students in one class level,
// case-normalized.
func (r *Repository) ListActiveByClass(ctx context.Context, classLevel string) ([]Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students WHERE active AND UPPER(class_level) = UPPER($1) ORDER BY full_name`, classLevel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStudents(rows)
}

func scanStudents(rows pgx.Rows) ([]Student, error) {
	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.FullName, &s.ClassLevel, &s.Stream, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return students, nil
}
