package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/shared"
)

// UpsertInstallmentPlan declares or amends the advisory plan for one
// (student, session, term). Plans never gate payment recording and are
// never consulted by the balance calculator.
func (s *Service) UpsertInstallmentPlan(ctx context.Context, input UpsertInstallmentPlanInput) (*InstallmentPlan, error) {
	if input.StudentID == "" {
		return nil, shared.NewValidationError("student_id", "required")
	}
	if input.SessionID == "" || input.TermID == "" {
		return nil, shared.NewValidationError("period", "session_id and term_id required")
	}
	if input.TotalInstallments <= 0 {
		return nil, shared.NewValidationError("total_installments", "must be greater than zero")
	}
	if !input.ExpectedPerInstallment.IsPositive() {
		return nil, shared.NewValidationError("expected_per_installment", "must be a positive amount")
	}

	if err := s.calendar.Validate(ctx, calendar.Period{SessionID: input.SessionID, TermID: input.TermID}); err != nil {
		return nil, err
	}
	if _, err := s.students.Get(ctx, input.StudentID); err != nil {
		return nil, err
	}

	plan, err := s.repo.UpsertInstallmentPlan(ctx, input)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "billing.upsert_installment_plan", calendar.Period{SessionID: input.SessionID, TermID: input.TermID}, map[string]any{
		"student_id":   input.StudentID,
		"installments": input.TotalInstallments,
	})
	return plan, nil
}

// InstallmentProgress reports the plan together with the derived
// current installment number: floor(totalPaid / expectedPerInstallment).
// The counter is computed, never stored.
type InstallmentProgress struct {
	Plan               InstallmentPlan `json:"plan"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	CurrentInstallment int             `json:"current_installment"`
}

// GetInstallmentProgress returns the plan with derived progress, or
// shared.ErrNotFound when no plan was declared.
func (s *Service) GetInstallmentProgress(ctx context.Context, studentID string, period calendar.Period) (*InstallmentProgress, error) {
	plan, err := s.repo.GetInstallmentPlan(ctx, studentID, period)
	if err != nil {
		return nil, err
	}

	payments, err := s.repo.ListPayments(ctx, studentID, period)
	if err != nil {
		return nil, err
	}
	totalPaid := decimal.Zero
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Amount)
	}

	current := 0
	if plan.ExpectedPerInstallment.IsPositive() {
		current = int(totalPaid.Div(plan.ExpectedPerInstallment).IntPart())
	}
	if current > plan.TotalInstallments {
		current = plan.TotalInstallments
	}

	return &InstallmentProgress{
		Plan:               *plan,
		TotalPaid:          totalPaid,
		CurrentInstallment: current,
	}, nil
}
