package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/feeschedule"
)

// Charge descriptions double as part of the deterministic upsert key,
// so they are fixed constants rather than free text.
const (
	DescriptionCurrentTerm  = "current term fee"
	DescriptionCarriedOver  = "carried forward balance"
	DescriptionAdminCorrect = "administrative correction"
)

// Charge represents money owed by a student for one purpose in one
// period. Current-term and carried-over charges are separate rows so
// they can be reported and allocated against independently.
type Charge struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	SessionID   string          `json:"session_id"`
	TermID      string          `json:"term_id"`
	Purpose     string          `json:"purpose"`
	Amount      decimal.Decimal `json:"amount"`
	CarriedOver bool            `json:"carried_over"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PaymentMethod is a reporting tag; it never affects balance math.
type PaymentMethod string

// Accepted payment channels.
const (
	MethodCash     PaymentMethod = "Cash"
	MethodTransfer PaymentMethod = "Transfer"
	MethodPOS      PaymentMethod = "POS"
	MethodOnline   PaymentMethod = "Online"
)

// Valid reports whether the method is a known channel.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodPOS, MethodOnline:
		return true
	}
	return false
}

// Payment is an append-only ledger row. Amount is immutable after
// insert; corrections are reversal rows, never edits.
type Payment struct {
	ID         string          `json:"id"`
	Receipt    string          `json:"receipt"`
	StudentID  string          `json:"student_id"`
	SessionID  string          `json:"session_id"`
	TermID     string          `json:"term_id"`
	Purpose    string          `json:"purpose"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	PaidOn     time.Time       `json:"paid_on"`
	Reference  string          `json:"reference,omitempty"`
	RecordedBy string          `json:"recorded_by"`
	ReversalOf string          `json:"reversal_of,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RecordPaymentInput describes a payment submission.
type RecordPaymentInput struct {
	StudentID  string          `json:"student_id" validate:"required"`
	SessionID  string          `json:"session_id" validate:"required"`
	TermID     string          `json:"term_id" validate:"required"`
	Purpose    string          `json:"purpose" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method" validate:"required"`
	PaidOn     time.Time       `json:"paid_on"`
	Reference  string          `json:"reference"`
	RecordedBy string          `json:"recorded_by"`
}

// UpdatePaymentMetaInput permits metadata-only edits. Amount is
// deliberately absent to preserve ledger integrity.
type UpdatePaymentMetaInput struct {
	PaymentID string     `json:"payment_id" validate:"required"`
	PaidOn    *time.Time `json:"paid_on,omitempty"`
	Reference *string    `json:"reference,omitempty"`
}

// InstallmentPlan is advisory metadata: one logical plan per
// (student, session, term), consumed by UI progress indicators only.
type InstallmentPlan struct {
	ID                     string          `json:"id"`
	StudentID              string          `json:"student_id"`
	SessionID              string          `json:"session_id"`
	TermID                 string          `json:"term_id"`
	TotalInstallments      int             `json:"total_installments"`
	ExpectedPerInstallment decimal.Decimal `json:"expected_per_installment"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// UpsertInstallmentPlanInput declares or amends a plan.
type UpsertInstallmentPlanInput struct {
	StudentID              string          `json:"student_id" validate:"required"`
	SessionID              string          `json:"session_id" validate:"required"`
	TermID                 string          `json:"term_id" validate:"required"`
	TotalInstallments      int             `json:"total_installments" validate:"gt=0"`
	ExpectedPerInstallment decimal.Decimal `json:"expected_per_installment"`
}

// BalanceStatus labels one billed/paid slice.
type BalanceStatus string

// Status labels.
const (
	StatusPending     BalanceStatus = "Pending"
	StatusOutstanding BalanceStatus = "Outstanding"
	StatusPaid        BalanceStatus = "Paid"
	StatusOverpaid    BalanceStatus = "Overpaid"
)

// StatusFor derives the status label from billed and paid totals.
// billed == 0 with payments present is Overpaid, not Paid: nothing was
// ever billed for that slice.
func StatusFor(billed, paid decimal.Decimal) BalanceStatus {
	switch {
	case billed.IsZero() && paid.IsZero():
		return StatusPending
	case paid.GreaterThan(billed):
		return StatusOverpaid
	case paid.Equal(billed) && billed.IsPositive():
		return StatusPaid
	default:
		return StatusOutstanding
	}
}

// LedgerLine is the derived per-purpose ledger view. It is computed on
// demand from Charge and Payment rows and never persisted.
type LedgerLine struct {
	StudentID    string          `json:"student_id"`
	SessionID    string          `json:"session_id"`
	TermID       string          `json:"term_id"`
	Purpose      string          `json:"purpose"`
	TotalCharged decimal.Decimal `json:"total_charged"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Balance      decimal.Decimal `json:"balance"`
	Status       BalanceStatus   `json:"status"`
}

// AllocationSplit shows how the payment pool offsets current-term
// versus carried-over debt. Payments reduce new debt before old debt:
// paidToCurrent = min(totalPaid, currentTotal),
// paidToPrevious = max(0, totalPaid - paidToCurrent).
type AllocationSplit struct {
	CurrentBilled       decimal.Decimal `json:"current_billed"`
	CarriedBilled       decimal.Decimal `json:"carried_billed"`
	PaidToCurrent       decimal.Decimal `json:"paid_to_current"`
	PaidToPrevious      decimal.Decimal `json:"paid_to_previous"`
	CurrentOutstanding  decimal.Decimal `json:"current_outstanding"`
	PreviousOutstanding decimal.Decimal `json:"previous_outstanding"`
}

// SplitAllocation applies the allocation policy to a payment pool.
func SplitAllocation(currentBilled, carriedBilled, totalPaid decimal.Decimal) AllocationSplit {
	paidToCurrent := decimal.Min(totalPaid, currentBilled)
	paidToPrevious := decimal.Max(decimal.Zero, totalPaid.Sub(paidToCurrent))
	return AllocationSplit{
		CurrentBilled:       currentBilled,
		CarriedBilled:       carriedBilled,
		PaidToCurrent:       paidToCurrent,
		PaidToPrevious:      paidToPrevious,
		CurrentOutstanding:  decimal.Max(decimal.Zero, currentBilled.Sub(paidToCurrent)),
		PreviousOutstanding: decimal.Max(decimal.Zero, carriedBilled.Sub(paidToPrevious)),
	}
}

// StudentBalance is the authoritative balance view for one student in
// one period.
type StudentBalance struct {
	StudentID   string          `json:"student_id"`
	Period      calendar.Period `json:"period"`
	Lines       []LedgerLine    `json:"lines"`
	TotalBilled decimal.Decimal `json:"total_billed"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      BalanceStatus   `json:"status"`
	Split       AllocationSplit `json:"split"`
}

// PeriodBalance is one period's slice of a student's history.
type PeriodBalance struct {
	Period      calendar.Period `json:"period"`
	TotalBilled decimal.Decimal `json:"total_billed"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      BalanceStatus   `json:"status"`
}

// StreamFeePolicy decides how a class-wide entry combines with a
// stream-specific entry for the same purpose.
type StreamFeePolicy string

// Supported policies.
const (
	// PolicyAdditive sums class-wide and stream-specific amounts (a
	// class may have a base fee plus a stream top-up).
	PolicyAdditive StreamFeePolicy = "additive"
	// PolicyOverride lets the stream-specific entry replace the
	// class-wide one entirely.
	PolicyOverride StreamFeePolicy = "override"
)

// ParseStreamFeePolicy validates a policy string.
func ParseStreamFeePolicy(s string) (StreamFeePolicy, error) {
	switch StreamFeePolicy(s) {
	case PolicyAdditive, PolicyOverride:
		return StreamFeePolicy(s), nil
	case "":
		return PolicyAdditive, nil
	}
	return "", fmt.Errorf("unknown stream fee policy %q", s)
}

// EntryMatchesStudent reports whether a fee entry applies to a student:
// class levels match case-insensitively, and the entry either has no
// stream or its stream matches the student's, case-insensitively.
func EntryMatchesStudent(entry feeschedule.Entry, student directory.Student) bool {
	if feeschedule.CanonicalClassLevel(entry.ClassLevel) != feeschedule.CanonicalClassLevel(student.ClassLevel) {
		return false
	}
	if entry.Stream == "" {
		return true
	}
	return equalFold(entry.Stream, student.Stream)
}

// ComputeExpectedForStudent folds the fee schedule into the expected
// amount per purpose for one student. Pure: no storage access, so the
// matching rules are testable in isolation.
func ComputeExpectedForStudent(student directory.Student, entries []feeschedule.Entry, policy StreamFeePolicy) map[string]decimal.Decimal {
	expected := make(map[string]decimal.Decimal)
	streamSpecific := make(map[string]bool)

	for _, entry := range entries {
		if !entry.Active || !EntryMatchesStudent(entry, student) {
			continue
		}
		purpose := feeschedule.CanonicalPurpose(entry.Purpose)
		if policy == PolicyOverride && entry.Stream != "" && !streamSpecific[purpose] {
			// First stream-specific entry for this purpose discards
			// any class-wide amounts accumulated so far.
			streamSpecific[purpose] = true
			expected[purpose] = decimal.Zero
		}
		if policy == PolicyOverride && entry.Stream == "" && streamSpecific[purpose] {
			continue
		}
		expected[purpose] = expected[purpose].Add(entry.Amount)
	}
	return expected
}

func equalFold(a, b string) bool {
	return feeschedule.CanonicalClassLevel(a) == feeschedule.CanonicalClassLevel(b)
}
