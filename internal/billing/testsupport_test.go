package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/feeschedule"
	"github.com/campusledger/campusledger/internal/shared"
)

type chargeKey struct {
	studentID   string
	sessionID   string
	termID      string
	purpose     string
	carriedOver bool
	description string
}

// memoryLedgerRepo mimics the deterministic-upsert semantics of the
// charges table without a database.
type memoryLedgerRepo struct {
	charges     map[chargeKey]Charge
	payments    map[string]*Payment
	plans       map[chargeKey]*InstallmentPlan
	nextID      int
	failUpserts map[string]error // studentID -> error, for batch failure tests
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		charges:     make(map[chargeKey]Charge),
		payments:    make(map[string]*Payment),
		plans:       make(map[chargeKey]*InstallmentPlan),
		failUpserts: make(map[string]error),
	}
}

func (r *memoryLedgerRepo) nextStringID() string {
	r.nextID++
	return fmt.Sprintf("id-%d", r.nextID)
}

func (r *memoryLedgerRepo) UpsertCharge(ctx context.Context, input ChargeUpsert) (bool, error) {
	if err := r.failUpserts[input.StudentID]; err != nil {
		return false, err
	}
	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return false, err
	}
	key := chargeKey{
		studentID:   input.StudentID,
		sessionID:   input.SessionID,
		termID:      input.TermID,
		purpose:     input.Purpose,
		carriedOver: input.CarriedOver,
		description: input.Description,
	}
	existing, ok := r.charges[key]
	if ok && existing.Amount.Equal(amount) {
		return false, nil
	}
	if !ok {
		existing = Charge{
			ID:          r.nextStringID(),
			StudentID:   input.StudentID,
			SessionID:   input.SessionID,
			TermID:      input.TermID,
			Purpose:     input.Purpose,
			CarriedOver: input.CarriedOver,
			Description: input.Description,
		}
	}
	existing.Amount = amount
	r.charges[key] = existing
	return true, nil
}

func (r *memoryLedgerRepo) ListCharges(ctx context.Context, studentID string, period calendar.Period) ([]Charge, error) {
	var out []Charge
	for key, c := range r.charges {
		if key.studentID == studentID && key.sessionID == period.SessionID && key.termID == period.TermID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) ListChargesByStudent(ctx context.Context, studentID string) ([]Charge, error) {
	var out []Charge
	for key, c := range r.charges {
		if key.studentID == studentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) InsertPayment(ctx context.Context, p Payment) (*Payment, error) {
	p.ID = r.nextStringID()
	stored := p
	r.payments[p.ID] = &stored
	result := stored
	return &result, nil
}

func (r *memoryLedgerRepo) GetPayment(ctx context.Context, id string) (*Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.NewNotFoundError("payment", id)
	}
	result := *p
	return &result, nil
}

func (r *memoryLedgerRepo) UpdatePaymentMeta(ctx context.Context, input UpdatePaymentMetaInput) error {
	p, ok := r.payments[input.PaymentID]
	if !ok {
		return shared.NewNotFoundError("payment", input.PaymentID)
	}
	if input.PaidOn != nil {
		p.PaidOn = *input.PaidOn
	}
	if input.Reference != nil {
		p.Reference = *input.Reference
	}
	return nil
}

func (r *memoryLedgerRepo) ListPayments(ctx context.Context, studentID string, period calendar.Period) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.StudentID == studentID && p.SessionID == period.SessionID && p.TermID == period.TermID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) ListPaymentsByStudent(ctx context.Context, studentID string) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.StudentID == studentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) UpsertInstallmentPlan(ctx context.Context, input UpsertInstallmentPlanInput) (*InstallmentPlan, error) {
	key := chargeKey{studentID: input.StudentID, sessionID: input.SessionID, termID: input.TermID}
	plan, ok := r.plans[key]
	if !ok {
		plan = &InstallmentPlan{
			ID:        r.nextStringID(),
			StudentID: input.StudentID,
			SessionID: input.SessionID,
			TermID:    input.TermID,
		}
		r.plans[key] = plan
	}
	plan.TotalInstallments = input.TotalInstallments
	plan.ExpectedPerInstallment = input.ExpectedPerInstallment
	result := *plan
	return &result, nil
}

func (r *memoryLedgerRepo) GetInstallmentPlan(ctx context.Context, studentID string, period calendar.Period) (*InstallmentPlan, error) {
	key := chargeKey{studentID: studentID, sessionID: period.SessionID, termID: period.TermID}
	plan, ok := r.plans[key]
	if !ok {
		return nil, shared.NewNotFoundError("installment plan", studentID)
	}
	result := *plan
	return &result, nil
}

type stubDirectory struct {
	students []directory.Student
}

func (d *stubDirectory) Get(ctx context.Context, id string) (*directory.Student, error) {
	for _, s := range d.students {
		if s.ID == id {
			result := s
			return &result, nil
		}
	}
	return nil, shared.NewNotFoundError("student", id)
}

func (d *stubDirectory) ListActive(ctx context.Context) ([]directory.Student, error) {
	var out []directory.Student
	for _, s := range d.students {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *stubDirectory) ListActiveByClass(ctx context.Context, classLevel string) ([]directory.Student, error) {
	var out []directory.Student
	for _, s := range d.students {
		if s.Active && strings.EqualFold(s.ClassLevel, classLevel) {
			out = append(out, s)
		}
	}
	return out, nil
}

type stubFees struct {
	entries map[calendar.Period][]feeschedule.Entry
}

func (f *stubFees) ListActiveForPeriod(ctx context.Context, period calendar.Period) ([]feeschedule.Entry, error) {
	return f.entries[period], nil
}

// stubCalendar orders its periods chronologically, index zero earliest.
type stubCalendar struct {
	periods []calendar.Period
}

func (c *stubCalendar) Validate(ctx context.Context, p calendar.Period) error {
	if p.SessionID == "" || p.TermID == "" {
		return shared.NewValidationError("period", "session_id and term_id required")
	}
	for _, known := range c.periods {
		if known == p {
			return nil
		}
	}
	return shared.NewNotFoundError("period", p.SessionID+"/"+p.TermID)
}

func (c *stubCalendar) PriorPeriod(ctx context.Context, p calendar.Period) (calendar.Period, error) {
	for i, known := range c.periods {
		if known == p {
			if i == 0 {
				return calendar.Period{}, shared.NewNotFoundError("prior period", p.SessionID+"/"+p.TermID)
			}
			return c.periods[i-1], nil
		}
	}
	return calendar.Period{}, shared.NewNotFoundError("period", p.SessionID+"/"+p.TermID)
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

var errRepoDown = errors.New("repository unavailable")

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	repo        *memoryLedgerRepo
	directory   *stubDirectory
	fees        *stubFees
	calendar    *stubCalendar
	invalidator *countingInvalidator
	service     *Service
}

func newFixture(policy StreamFeePolicy) *fixture {
	f := &fixture{
		repo:        newMemoryLedgerRepo(),
		directory:   &stubDirectory{},
		fees:        &stubFees{entries: make(map[calendar.Period][]feeschedule.Entry)},
		calendar:    &stubCalendar{},
		invalidator: &countingInvalidator{},
	}
	f.service = NewService(f.repo, f.directory, f.fees, f.calendar, nil, f.invalidator, nil, nil, ServiceConfig{StreamFeePolicy: policy})
	return f
}
