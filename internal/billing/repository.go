package billing

import (
	"context"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/feeschedule"
)

// ChargeUpsert carries the deterministic upsert key plus the amount.
// The key is (student, session, term, purpose, carried_over,
// description); re-running generation overwrites the amount rather than
// inserting a second row.
type ChargeUpsert struct {
	StudentID   string
	SessionID   string
	TermID      string
	Purpose     string
	Amount      string
	CarriedOver bool
	Description string
}

// RepositoryPort defines data access methods for the billing ledger.
type RepositoryPort interface {
	// UpsertCharge writes a charge row on its deterministic key and
	// reports whether anything changed (insert, or amount overwrite).
	UpsertCharge(ctx context.Context, input ChargeUpsert) (bool, error)
	ListCharges(ctx context.Context, studentID string, period calendar.Period) ([]Charge, error)
	ListChargesByStudent(ctx context.Context, studentID string) ([]Charge, error)

	InsertPayment(ctx context.Context, p Payment) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	UpdatePaymentMeta(ctx context.Context, input UpdatePaymentMetaInput) error
	ListPayments(ctx context.Context, studentID string, period calendar.Period) ([]Payment, error)
	ListPaymentsByStudent(ctx context.Context, studentID string) ([]Payment, error)

	UpsertInstallmentPlan(ctx context.Context, input UpsertInstallmentPlanInput) (*InstallmentPlan, error)
	GetInstallmentPlan(ctx context.Context, studentID string, period calendar.Period) (*InstallmentPlan, error)
}

// StudentDirectoryPort is the read-only slice of the student directory
// the engine consumes.
type StudentDirectoryPort interface {
	Get(ctx context.Context, id string) (*directory.Student, error)
	ListActive(ctx context.Context) ([]directory.Student, error)
	ListActiveByClass(ctx context.Context, classLevel string) ([]directory.Student, error)
}

// FeeSchedulePort supplies active fee entries for a period.
type FeeSchedulePort interface {
	ListActiveForPeriod(ctx context.Context, period calendar.Period) ([]feeschedule.Entry, error)
}

// CalendarPort resolves and orders billing periods.
type CalendarPort interface {
	Validate(ctx context.Context, p calendar.Period) error
	PriorPeriod(ctx context.Context, p calendar.Period) (calendar.Period, error)
}

// CacheInvalidator is notified after every ledger write so cached
// report reads are recomputed.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}
