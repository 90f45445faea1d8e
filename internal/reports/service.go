package reports

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/campusledger/campusledger/internal/billing"
	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/shared"
)

// BalanceSource is the slice of the billing engine reports fold over.
type BalanceSource interface {
	BalancesForClass(ctx context.Context, classLevel string, period calendar.Period) ([]billing.StudentBalance, error)
	PeriodBalances(ctx context.Context, period calendar.Period) ([]billing.StudentBalance, error)
}

// DirectoryPort supplies student names for report rows.
type DirectoryPort interface {
	ListActiveByClass(ctx context.Context, classLevel string) ([]directory.Student, error)
}

// Service computes read-only report views. Everything here is a pure
// fold over balance calculator output; no report figure is persisted.
type Service struct {
	balances BalanceSource
	students DirectoryPort
}

// NewService builds Service instance.
func NewService(balances BalanceSource, students DirectoryPort) *Service {
	return &Service{balances: balances, students: students}
}

// OwingStudent is one row of the class summary's debtor list.
type OwingStudent struct {
	StudentID   string          `json:"student_id"`
	FullName    string          `json:"full_name"`
	Billed      decimal.Decimal `json:"billed"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// ClassSummary aggregates one class for one period. Expected is the
// sum of per-student billed figures: stream-specific top-ups make
// charges heterogeneous within a class, so the summary never multiplies
// a single figure by headcount.
type ClassSummary struct {
	ClassLevel     string          `json:"class_level"`
	Period         calendar.Period `json:"period"`
	Students       int             `json:"students"`
	Expected       decimal.Decimal `json:"expected"`
	Collected      decimal.Decimal `json:"collected"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	CollectionRate decimal.Decimal `json:"collection_rate"`
	OwingStudents  []OwingStudent  `json:"owing_students"`
}

// ClassSummary computes the class aggregate.
func (s *Service) ClassSummary(ctx context.Context, classLevel string, period calendar.Period) (*ClassSummary, error) {
	if classLevel == "" {
		return nil, shared.NewValidationError("class_level", "required")
	}

	students, err := s.students.ListActiveByClass(ctx, classLevel)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(students))
	for _, st := range students {
		names[st.ID] = st.FullName
	}

	balances, err := s.balances.BalancesForClass(ctx, classLevel, period)
	if err != nil {
		return nil, err
	}

	summary := &ClassSummary{
		ClassLevel:     classLevel,
		Period:         period,
		Students:       len(balances),
		Expected:       decimal.Zero,
		Collected:      decimal.Zero,
		Outstanding:    decimal.Zero,
		CollectionRate: decimal.Zero,
	}
	for _, b := range balances {
		summary.Expected = summary.Expected.Add(b.TotalBilled)
		summary.Collected = summary.Collected.Add(b.TotalPaid)
		summary.Outstanding = summary.Outstanding.Add(b.Outstanding)
		if b.Outstanding.IsPositive() {
			summary.OwingStudents = append(summary.OwingStudents, OwingStudent{
				StudentID:   b.StudentID,
				FullName:    names[b.StudentID],
				Billed:      b.TotalBilled,
				Paid:        b.TotalPaid,
				Outstanding: b.Outstanding,
			})
		}
	}
	if summary.Expected.IsPositive() {
		summary.CollectionRate = summary.Collected.Div(summary.Expected).Round(4)
	}
	sort.Slice(summary.OwingStudents, func(i, j int) bool {
		return summary.OwingStudents[j].Outstanding.LessThan(summary.OwingStudents[i].Outstanding)
	})
	return summary, nil
}

// AgingSummary splits a period's outstanding debt between current-term
// and carried-over charges.
type AgingSummary struct {
	Period             calendar.Period `json:"period"`
	CurrentBilled      decimal.Decimal `json:"current_billed"`
	CarriedBilled      decimal.Decimal `json:"carried_billed"`
	CurrentOutstanding decimal.Decimal `json:"current_outstanding"`
	CarriedOutstanding decimal.Decimal `json:"carried_outstanding"`
	StudentsOwing      int             `json:"students_owing"`
}

// AgingSummary computes the period-wide current/carried debt split.
func (s *Service) AgingSummary(ctx context.Context, period calendar.Period) (*AgingSummary, error) {
	balances, err := s.balances.PeriodBalances(ctx, period)
	if err != nil {
		return nil, err
	}

	summary := &AgingSummary{
		Period:             period,
		CurrentBilled:      decimal.Zero,
		CarriedBilled:      decimal.Zero,
		CurrentOutstanding: decimal.Zero,
		CarriedOutstanding: decimal.Zero,
	}
	for _, b := range balances {
		summary.CurrentBilled = summary.CurrentBilled.Add(b.Split.CurrentBilled)
		summary.CarriedBilled = summary.CarriedBilled.Add(b.Split.CarriedBilled)
		summary.CurrentOutstanding = summary.CurrentOutstanding.Add(b.Split.CurrentOutstanding)
		summary.CarriedOutstanding = summary.CarriedOutstanding.Add(b.Split.PreviousOutstanding)
		if b.Outstanding.IsPositive() {
			summary.StudentsOwing++
		}
	}
	return summary, nil
}
