package billing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/shared"
)

// ledgerLines folds a student's charges and payments for one period
// into per-purpose lines. This is the single source of truth for
// "billed" and "paid"; nothing derived is ever persisted.
func (s *Service) ledgerLines(ctx context.Context, studentID string, period calendar.Period) ([]LedgerLine, error) {
	charges, err := s.repo.ListCharges(ctx, studentID, period)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, studentID, period)
	if err != nil {
		return nil, err
	}

	billed := make(map[string]decimal.Decimal)
	paid := make(map[string]decimal.Decimal)
	for _, c := range charges {
		billed[c.Purpose] = billed[c.Purpose].Add(c.Amount)
	}
	for _, p := range payments {
		paid[p.Purpose] = paid[p.Purpose].Add(p.Amount)
	}

	purposes := make(map[string]struct{}, len(billed)+len(paid))
	for purpose := range billed {
		purposes[purpose] = struct{}{}
	}
	for purpose := range paid {
		purposes[purpose] = struct{}{}
	}

	lines := make([]LedgerLine, 0, len(purposes))
	for purpose := range purposes {
		b := billed[purpose]
		p := paid[purpose]
		lines = append(lines, LedgerLine{
			StudentID:    studentID,
			SessionID:    period.SessionID,
			TermID:       period.TermID,
			Purpose:      purpose,
			TotalCharged: b,
			TotalPaid:    p,
			// Balance may go negative here (Overpaid); outstanding
			// displays floor it at zero.
			Balance: b.Sub(p),
			Status:  StatusFor(b, p),
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Purpose < lines[j].Purpose })
	return lines, nil
}

// StudentBalance computes the authoritative balance for one student in
// one period: per-purpose lines, the aggregate, and the current/carried
// allocation split. A student with no charges and no payments reports
// zeros with status Pending, not an error.
func (s *Service) StudentBalance(ctx context.Context, studentID string, period calendar.Period) (*StudentBalance, error) {
	if studentID == "" {
		return nil, shared.NewValidationError("student_id", "required")
	}
	if err := s.calendar.Validate(ctx, period); err != nil {
		return nil, err
	}
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	return s.studentBalance(ctx, studentID, period)
}

// studentBalance skips existence checks; internal callers (class
// aggregation) have already resolved the student.
func (s *Service) studentBalance(ctx context.Context, studentID string, period calendar.Period) (*StudentBalance, error) {
	lines, err := s.ledgerLines(ctx, studentID, period)
	if err != nil {
		return nil, err
	}

	charges, err := s.repo.ListCharges(ctx, studentID, period)
	if err != nil {
		return nil, err
	}

	totalBilled := decimal.Zero
	totalPaid := decimal.Zero
	currentBilled := decimal.Zero
	carriedBilled := decimal.Zero
	for _, line := range lines {
		totalBilled = totalBilled.Add(line.TotalCharged)
		totalPaid = totalPaid.Add(line.TotalPaid)
	}
	for _, c := range charges {
		if c.CarriedOver {
			carriedBilled = carriedBilled.Add(c.Amount)
		} else {
			currentBilled = currentBilled.Add(c.Amount)
		}
	}

	outstanding := decimal.Max(decimal.Zero, totalBilled.Sub(totalPaid))
	if len(lines) > 0 {
		// A purpose with payments but no charge is a likely
		// misconfiguration worth surfacing in the logs.
		for _, line := range lines {
			if line.TotalCharged.IsZero() && line.TotalPaid.IsPositive() {
				s.logger.Info("payment recorded against unbilled purpose",
					slog.String("student_id", studentID), slog.String("purpose", line.Purpose))
			}
		}
	}

	return &StudentBalance{
		StudentID:   studentID,
		Period:      period,
		Lines:       lines,
		TotalBilled: totalBilled,
		TotalPaid:   totalPaid,
		Outstanding: outstanding,
		Status:      StatusFor(totalBilled, totalPaid),
		Split:       SplitAllocation(currentBilled, carriedBilled, totalPaid),
	}, nil
}

// StudentHistory computes one student's balance across every period
// that holds a charge or payment for them, in no particular order
// beyond session/term grouping.
func (s *Service) StudentHistory(ctx context.Context, studentID string) ([]PeriodBalance, error) {
	if studentID == "" {
		return nil, shared.NewValidationError("student_id", "required")
	}
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return nil, err
	}

	charges, err := s.repo.ListChargesByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPaymentsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	billed := make(map[calendar.Period]decimal.Decimal)
	paid := make(map[calendar.Period]decimal.Decimal)
	for _, c := range charges {
		key := calendar.Period{SessionID: c.SessionID, TermID: c.TermID}
		billed[key] = billed[key].Add(c.Amount)
	}
	for _, p := range payments {
		key := calendar.Period{SessionID: p.SessionID, TermID: p.TermID}
		paid[key] = paid[key].Add(p.Amount)
	}

	periods := make(map[calendar.Period]struct{}, len(billed)+len(paid))
	for key := range billed {
		periods[key] = struct{}{}
	}
	for key := range paid {
		periods[key] = struct{}{}
	}

	history := make([]PeriodBalance, 0, len(periods))
	for key := range periods {
		b := billed[key]
		p := paid[key]
		history = append(history, PeriodBalance{
			Period:      key,
			TotalBilled: b,
			TotalPaid:   p,
			Outstanding: decimal.Max(decimal.Zero, b.Sub(p)),
			Status:      StatusFor(b, p),
		})
	}
	sort.Slice(history, func(i, j int) bool {
		if history[i].Period.SessionID != history[j].Period.SessionID {
			return history[i].Period.SessionID < history[j].Period.SessionID
		}
		return history[i].Period.TermID < history[j].Period.TermID
	})
	return history, nil
}

// BalancesForClass computes each active student's balance in one class
// independently. Fee entries can differ per student via stream
// matching, so the aggregate never assumes a uniform per-student
// charge; callers sum the returned balances.
func (s *Service) BalancesForClass(ctx context.Context, classLevel string, period calendar.Period) ([]StudentBalance, error) {
	if classLevel == "" {
		return nil, shared.NewValidationError("class_level", "required")
	}
	if err := s.calendar.Validate(ctx, period); err != nil {
		return nil, err
	}

	students, err := s.students.ListActiveByClass(ctx, classLevel)
	if err != nil {
		return nil, err
	}
	return s.balancesFor(ctx, students, period)
}

// PeriodBalances computes every active student's balance for one
// period, for period-wide reporting (aging, collection rate).
func (s *Service) PeriodBalances(ctx context.Context, period calendar.Period) ([]StudentBalance, error) {
	if err := s.calendar.Validate(ctx, period); err != nil {
		return nil, err
	}
	students, err := s.students.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.balancesFor(ctx, students, period)
}

func (s *Service) balancesFor(ctx context.Context, students []directory.Student, period calendar.Period) ([]StudentBalance, error) {
	balances := make([]StudentBalance, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, student := range students {
		g.Go(func() error {
			balance, err := s.studentBalance(gctx, student.ID, period)
			if err != nil {
				return err
			}
			balances[i] = *balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}
