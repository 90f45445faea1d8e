package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertCharge writes a charge on its deterministic key. Concurrent
// generation runs converge because the key is deterministic and the
// amount comes from the fee schedule: last write wins. Returns true
// when a row was inserted or its amount actually changed.
func (r *Repository) UpsertCharge(ctx context.Context, input ChargeUpsert) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO charges (student_id, session_id, term_id, purpose, amount, carried_over, description)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		ON CONFLICT (student_id, session_id, term_id, purpose, carried_over, description)
		DO UPDATE SET amount = EXCLUDED.amount
		WHERE charges.amount IS DISTINCT FROM EXCLUDED.amount`,
		input.StudentID, input.SessionID, input.TermID, input.Purpose, input.Amount, input.CarriedOver, input.Description)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const chargeColumns = `id, student_id, session_id, term_id, purpose, amount::text, carried_over, description, created_at`

// ListCharges returns a student's charges for one period.
func (r *Repository) ListCharges(ctx context.Context, studentID string, period calendar.Period) ([]Charge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+chargeColumns+`
		FROM charges
		WHERE student_id = $1 AND session_id = $2 AND term_id = $3
		ORDER BY purpose, carried_over`,
		studentID, period.SessionID, period.TermID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharges(rows)
}

// ListChargesByStudent returns every charge for a student, all periods.
func (r *Repository) ListChargesByStudent(ctx context.Context, studentID string) ([]Charge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+chargeColumns+`
		FROM charges
		WHERE student_id = $1
		ORDER BY session_id, term_id, purpose`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCharges(rows)
}

const paymentColumns = `id, receipt, student_id, session_id, term_id, purpose, amount::text, method, paid_on, COALESCE(reference, ''), recorded_by, COALESCE(reversal_of::text, ''), created_at`

// InsertPayment appends a payment row.
func (r *Repository) InsertPayment(ctx context.Context, p Payment) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (receipt, student_id, session_id, term_id, purpose, amount, method, paid_on, reference, recorded_by, reversal_of)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, NULLIF($9, ''), $10, NULLIF($11, '')::uuid)
		RETURNING `+paymentColumns,
		p.Receipt, p.StudentID, p.SessionID, p.TermID, p.Purpose, p.Amount.String(), string(p.Method), p.PaidOn, p.Reference, p.RecordedBy, p.ReversalOf)
	return scanPayment(row)
}

// GetPayment returns one payment by ID.
func (r *Repository) GetPayment(ctx context.Context, id string) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	payment, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NewNotFoundError("payment", id)
	}
	return payment, err
}

// UpdatePaymentMeta edits reference/paid_on only; the amount column is
// never touched by this statement.
func (r *Repository) UpdatePaymentMeta(ctx context.Context, input UpdatePaymentMetaInput) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET paid_on = COALESCE($2, paid_on),
		    reference = COALESCE($3, reference)
		WHERE id = $1`,
		input.PaymentID, input.PaidOn, input.Reference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("payment", input.PaymentID)
	}
	return nil
}

// ListPayments returns a student's payments for one period.
func (r *Repository) ListPayments(ctx context.Context, studentID string, period calendar.Period) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE student_id = $1 AND session_id = $2 AND term_id = $3
		ORDER BY paid_on, created_at`,
		studentID, period.SessionID, period.TermID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

// ListPaymentsByStudent returns every payment for a student.
func (r *Repository) ListPaymentsByStudent(ctx context.Context, studentID string) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE student_id = $1
		ORDER BY session_id, term_id, paid_on`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

// UpsertInstallmentPlan writes the single logical plan per
// (student, session, term).
func (r *Repository) UpsertInstallmentPlan(ctx context.Context, input UpsertInstallmentPlanInput) (*InstallmentPlan, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO installment_plans (student_id, session_id, term_id, total_installments, expected_per_installment)
		VALUES ($1, $2, $3, $4, $5::numeric)
		ON CONFLICT (student_id, session_id, term_id)
		DO UPDATE SET total_installments = EXCLUDED.total_installments,
		              expected_per_installment = EXCLUDED.expected_per_installment,
		              updated_at = NOW()
		RETURNING id, student_id, session_id, term_id, total_installments, expected_per_installment::text, updated_at`,
		input.StudentID, input.SessionID, input.TermID, input.TotalInstallments, input.ExpectedPerInstallment.String())
	return scanPlan(row)
}

// GetInstallmentPlan returns the plan for one student/period.
func (r *Repository) GetInstallmentPlan(ctx context.Context, studentID string, period calendar.Period) (*InstallmentPlan, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, student_id, session_id, term_id, total_installments, expected_per_installment::text, updated_at
		FROM installment_plans
		WHERE student_id = $1 AND session_id = $2 AND term_id = $3`,
		studentID, period.SessionID, period.TermID)
	plan, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.NewNotFoundError("installment plan", studentID)
	}
	return plan, err
}

func scanCharges(rows pgx.Rows) ([]Charge, error) {
	var charges []Charge
	for rows.Next() {
		var c Charge
		var amount string
		if err := rows.Scan(&c.ID, &c.StudentID, &c.SessionID, &c.TermID, &c.Purpose, &amount, &c.CarriedOver, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		dec, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		c.Amount = dec
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return charges, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var amount, method string
	if err := row.Scan(&p.ID, &p.Receipt, &p.StudentID, &p.SessionID, &p.TermID, &p.Purpose, &amount, &method, &p.PaidOn, &p.Reference, &p.RecordedBy, &p.ReversalOf, &p.CreatedAt); err != nil {
		return nil, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = dec
	p.Method = PaymentMethod(method)
	return &p, nil
}

func scanPayments(rows pgx.Rows) ([]Payment, error) {
	var payments []Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func scanPlan(row pgx.Row) (*InstallmentPlan, error) {
	var plan InstallmentPlan
	var expected string
	if err := row.Scan(&plan.ID, &plan.StudentID, &plan.SessionID, &plan.TermID, &plan.TotalInstallments, &expected, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	dec, err := decimal.NewFromString(expected)
	if err != nil {
		return nil, err
	}
	plan.ExpectedPerInstallment = dec
	return &plan, nil
}
