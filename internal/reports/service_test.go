package reports

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusledger/campusledger/internal/billing"
	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type stubBalances struct {
	balances []billing.StudentBalance
}

func (s *stubBalances) BalancesForClass(ctx context.Context, classLevel string, period calendar.Period) ([]billing.StudentBalance, error) {
	return s.balances, nil
}

func (s *stubBalances) PeriodBalances(ctx context.Context, period calendar.Period) ([]billing.StudentBalance, error) {
	return s.balances, nil
}

type stubStudents struct {
	students []directory.Student
}

func (s *stubStudents) ListActiveByClass(ctx context.Context, classLevel string) ([]directory.Student, error) {
	return s.students, nil
}

func balance(studentID, billed, paid string) billing.StudentBalance {
	b := decimal.RequireFromString(billed)
	p := decimal.RequireFromString(paid)
	return billing.StudentBalance{
		StudentID:   studentID,
		TotalBilled: b,
		TotalPaid:   p,
		Outstanding: decimal.Max(decimal.Zero, b.Sub(p)),
		Status:      billing.StatusFor(b, p),
		Split:       billing.SplitAllocation(b, decimal.Zero, p),
	}
}

func TestClassSummary(t *testing.T) {
	period := calendar.Period{SessionID: "2025", TermID: "t1"}
	svc := NewService(
		&stubBalances{balances: []billing.StudentBalance{
			balance("ada", "6500", "6500"),
			balance("bayo", "6500", "2000"),
			balance("chi", "5000", "0"),
		}},
		&stubStudents{students: []directory.Student{
			{ID: "ada", FullName: "Ada Obi"},
			{ID: "bayo", FullName: "Bayo Ade"},
			{ID: "chi", FullName: "Chi Eze"},
		}},
	)

	summary, err := svc.ClassSummary(context.Background(), "SS1", period)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Students)
	assert.True(t, summary.Expected.Equal(dec(t, "18000")), "heterogeneous class sums per-student figures")
	assert.True(t, summary.Collected.Equal(dec(t, "8500")))
	assert.True(t, summary.Outstanding.Equal(dec(t, "9500")))
	assert.True(t, summary.CollectionRate.Equal(dec(t, "0.4722")))

	require.Len(t, summary.OwingStudents, 2)
	assert.Equal(t, "chi", summary.OwingStudents[0].StudentID, "largest debtor first")
	assert.Equal(t, "Chi Eze", summary.OwingStudents[0].FullName)
	assert.Equal(t, "bayo", summary.OwingStudents[1].StudentID)
}

func TestClassSummaryEmptyClass(t *testing.T) {
	svc := NewService(&stubBalances{}, &stubStudents{})
	summary, err := svc.ClassSummary(context.Background(), "SS1", calendar.Period{SessionID: "2025", TermID: "t1"})
	require.NoError(t, err)
	assert.Zero(t, summary.Students)
	assert.True(t, summary.CollectionRate.IsZero(), "no division by zero expected amount")

	_, err = svc.ClassSummary(context.Background(), "", calendar.Period{})
	assert.Error(t, err)
}

func TestAgingSummary(t *testing.T) {
	withSplit := func(studentID string, current, carried, paid string) billing.StudentBalance {
		c := decimal.RequireFromString(current)
		k := decimal.RequireFromString(carried)
		p := decimal.RequireFromString(paid)
		return billing.StudentBalance{
			StudentID:   studentID,
			TotalBilled: c.Add(k),
			TotalPaid:   p,
			Outstanding: decimal.Max(decimal.Zero, c.Add(k).Sub(p)),
			Split:       billing.SplitAllocation(c, k, p),
		}
	}

	svc := NewService(&stubBalances{balances: []billing.StudentBalance{
		withSplit("ada", "5000", "2000", "6000"),
		withSplit("bayo", "5000", "0", "5000"),
	}}, &stubStudents{})

	summary, err := svc.AgingSummary(context.Background(), calendar.Period{SessionID: "2025", TermID: "t2"})
	require.NoError(t, err)
	assert.True(t, summary.CurrentBilled.Equal(dec(t, "10000")))
	assert.True(t, summary.CarriedBilled.Equal(dec(t, "2000")))
	assert.True(t, summary.CurrentOutstanding.IsZero())
	assert.True(t, summary.CarriedOutstanding.Equal(dec(t, "1000")))
	assert.Equal(t, 1, summary.StudentsOwing)
}

func TestWriteClassSummaryCSV(t *testing.T) {
	summary := &ClassSummary{
		ClassLevel:     "SS1",
		Period:         calendar.Period{SessionID: "2025", TermID: "t1"},
		Students:       1,
		Expected:       dec(t, "5000"),
		Collected:      dec(t, "2000"),
		Outstanding:    dec(t, "3000"),
		CollectionRate: dec(t, "0.4"),
		OwingStudents: []OwingStudent{
			{StudentID: "chi", FullName: "Chi Eze", Billed: dec(t, "5000"), Paid: dec(t, "2000"), Outstanding: dec(t, "3000")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteClassSummaryCSV(&buf, summary))
	out := buf.String()
	assert.Contains(t, out, "expected,5000.00")
	assert.Contains(t, out, "chi,Chi Eze,5000.00,2000.00,3000.00")
}
