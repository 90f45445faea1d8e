package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/shared"
)

// RecordPayment appends a payment row. Payments may arrive before,
// during or after charges exist; there is no check that a matching
// charge exists (an unmatched purpose simply reports Overpaid).
// Concurrent submissions are independent appends, so no locking.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*Payment, error) {
	if input.StudentID == "" {
		return nil, shared.NewValidationError("student_id", "required")
	}
	if input.SessionID == "" || input.TermID == "" {
		return nil, shared.NewValidationError("period", "session_id and term_id required")
	}
	if input.Purpose == "" {
		return nil, shared.NewValidationError("purpose", "required")
	}
	if !input.Amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "must be a positive amount")
	}
	if !input.Method.Valid() {
		return nil, shared.NewValidationError("method", "must be one of Cash, Transfer, POS, Online")
	}

	if err := s.calendar.Validate(ctx, calendar.Period{SessionID: input.SessionID, TermID: input.TermID}); err != nil {
		return nil, err
	}
	if _, err := s.students.Get(ctx, input.StudentID); err != nil {
		return nil, err
	}

	paidOn := input.PaidOn
	if paidOn.IsZero() {
		paidOn = time.Now()
	}
	recordedBy := input.RecordedBy
	if recordedBy == "" {
		recordedBy = shared.CallerFromContext(ctx).ID
	}

	payment, err := s.repo.InsertPayment(ctx, Payment{
		Receipt:    "RCP-" + uuid.NewString(),
		StudentID:  input.StudentID,
		SessionID:  input.SessionID,
		TermID:     input.TermID,
		Purpose:    canonicalPurpose(input.Purpose),
		Amount:     input.Amount,
		Method:     input.Method,
		PaidOn:     paidOn,
		Reference:  input.Reference,
		RecordedBy: recordedBy,
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	s.invalidate(ctx)
	s.record(ctx, "billing.record_payment", calendar.Period{SessionID: input.SessionID, TermID: input.TermID}, map[string]any{
		"student_id": input.StudentID,
		"purpose":    payment.Purpose,
		"amount":     payment.Amount.String(),
		"method":     string(payment.Method),
	})
	return payment, nil
}

// ReversePayment voids a historical payment by appending a negating
// row that references the original. The original row is never edited.
func (s *Service) ReversePayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, shared.NewValidationError("payment_id", "required")
	}
	original, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if original.ReversalOf != "" {
		return nil, shared.NewValidationError("payment_id", "cannot reverse a reversal")
	}

	reversal, err := s.repo.InsertPayment(ctx, Payment{
		Receipt:    "RCP-" + uuid.NewString(),
		StudentID:  original.StudentID,
		SessionID:  original.SessionID,
		TermID:     original.TermID,
		Purpose:    original.Purpose,
		Amount:     original.Amount.Neg(),
		Method:     original.Method,
		PaidOn:     time.Now(),
		Reference:  original.Receipt,
		RecordedBy: shared.CallerFromContext(ctx).ID,
		ReversalOf: original.ID,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.record(ctx, "billing.reverse_payment", calendar.Period{SessionID: original.SessionID, TermID: original.TermID}, map[string]any{
		"payment_id": original.ID,
		"amount":     original.Amount.String(),
	})
	return reversal, nil
}

// UpdatePaymentMeta edits reference and paid-on date only. The amount
// is immutable once recorded.
func (s *Service) UpdatePaymentMeta(ctx context.Context, input UpdatePaymentMetaInput) error {
	if input.PaymentID == "" {
		return shared.NewValidationError("payment_id", "required")
	}
	if input.PaidOn == nil && input.Reference == nil {
		return shared.NewValidationError("payment", "nothing to update")
	}
	if err := s.repo.UpdatePaymentMeta(ctx, input); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListPayments returns a student's payments for one period.
func (s *Service) ListPayments(ctx context.Context, studentID string, period calendar.Period) ([]Payment, error) {
	if studentID == "" {
		return nil, shared.NewValidationError("student_id", "required")
	}
	return s.repo.ListPayments(ctx, studentID, period)
}
