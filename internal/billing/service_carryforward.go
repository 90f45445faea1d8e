package billing

import (
	"context"
	"log/slog"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/shared"
)

// CarryForwardBalances snapshots each student's unpaid per-purpose
// balance from the immediately preceding period and writes it into the
// target period as carried-over charge rows. Only strictly positive
// balances are carried; zero and overpaid slices produce no row.
//
// The snapshot is taken once at promotion time. Late payments against
// the old period do not re-sync carried rows; administrators re-run
// promotion to pick them up (the upsert key makes re-runs safe).
func (s *Service) CarryForwardBalances(ctx context.Context, period calendar.Period) (shared.BatchResult, error) {
	var result shared.BatchResult

	if err := s.calendar.Validate(ctx, period); err != nil {
		return result, err
	}

	prior, err := s.calendar.PriorPeriod(ctx, period)
	if err != nil {
		// No prior period means there is nothing to carry; the caller
		// gets the reason rather than a silent zero.
		return result, err
	}

	students, err := s.students.ListActive(ctx)
	if err != nil {
		return result, err
	}

	for _, student := range students {
		lines, err := s.ledgerLines(ctx, student.ID, prior)
		if err != nil {
			// Best-effort bulk operation: skip this student, keep going.
			s.logger.Warn("prior balance computation failed, skipping student",
				slog.String("student_id", student.ID), slog.Any("error", err))
			result.AddError(student.ID, "", err)
			continue
		}

		for _, line := range lines {
			if !line.Balance.IsPositive() {
				continue
			}
			changed, err := s.repo.UpsertCharge(ctx, ChargeUpsert{
				StudentID:   student.ID,
				SessionID:   period.SessionID,
				TermID:      period.TermID,
				Purpose:     line.Purpose,
				Amount:      line.Balance.String(),
				CarriedOver: true,
				Description: DescriptionCarriedOver,
			})
			if err != nil {
				s.logger.Warn("carry-forward upsert failed",
					slog.String("student_id", student.ID), slog.String("purpose", line.Purpose), slog.Any("error", err))
				result.AddError(student.ID, line.Purpose, err)
				continue
			}
			if changed {
				result.UpdatedCount++
				if s.metrics != nil {
					s.metrics.CarriedForward.Inc()
				}
			}
		}
	}

	s.invalidate(ctx)
	s.record(ctx, "billing.carry_forward", period, map[string]any{
		"prior_session_id": prior.SessionID,
		"prior_term_id":    prior.TermID,
		"carried":          result.UpdatedCount,
		"errors":           len(result.Errors),
	})
	return result, nil
}
