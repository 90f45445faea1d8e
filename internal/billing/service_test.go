package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/feeschedule"
	"github.com/campusledger/campusledger/internal/shared"
)

var (
	term1 = calendar.Period{SessionID: "2025", TermID: "t1"}
	term2 = calendar.Period{SessionID: "2025", TermID: "t2"}
)

func seedClass(f *fixture) {
	f.calendar.periods = []calendar.Period{term1, term2}
	f.directory.students = []directory.Student{
		{ID: "ada", FullName: "Ada Obi", ClassLevel: "JSS1", Stream: "Gold", Active: true},
		{ID: "bayo", FullName: "Bayo Ade", ClassLevel: "JSS1", Stream: "Silver", Active: true},
		{ID: "chi", FullName: "Chi Eze", ClassLevel: "JSS2", Active: true},
		{ID: "dead", FullName: "Left School", ClassLevel: "JSS1", Active: false},
	}
	f.fees.entries[term1] = []feeschedule.Entry{
		{ClassLevel: "JSS1", Purpose: "Tuition", Amount: dec("5000"), Active: true},
		{ClassLevel: "JSS1", Stream: "Gold", Purpose: "Tuition", Amount: dec("1000"), Active: true},
		{ClassLevel: "JSS2", Purpose: "Tuition", Amount: dec("7000"), Active: true},
	}
}

func TestGenerateCharges(t *testing.T) {
	ctx := context.Background()

	t.Run("bills every matching active student", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		result, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, 3, result.UpdatedCount)

		adaCharges, err := f.repo.ListCharges(ctx, "ada", term1)
		require.NoError(t, err)
		require.Len(t, adaCharges, 1)
		assert.True(t, adaCharges[0].Amount.Equal(dec("6000")), "base plus stream top-up")
		assert.False(t, adaCharges[0].CarriedOver)
		assert.Equal(t, DescriptionCurrentTerm, adaCharges[0].Description)

		inactiveCharges, err := f.repo.ListCharges(ctx, "dead", term1)
		require.NoError(t, err)
		assert.Empty(t, inactiveCharges, "inactive students are never billed")
	})

	t.Run("re-run is idempotent", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		first, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)
		assert.Equal(t, 3, first.UpdatedCount)

		second, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)
		assert.Zero(t, second.UpdatedCount, "unchanged amounts report zero updates")
		assert.Empty(t, second.Errors)

		adaCharges, err := f.repo.ListCharges(ctx, "ada", term1)
		require.NoError(t, err)
		assert.Len(t, adaCharges, 1, "no duplicate rows on re-run")
	})

	t.Run("re-run after fee change overwrites the amount", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		_, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)

		f.fees.entries[term1] = []feeschedule.Entry{
			{ClassLevel: "JSS1", Purpose: "Tuition", Amount: dec("5500"), Active: true},
		}
		result, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)
		assert.Equal(t, 2, result.UpdatedCount, "both JSS1 students re-billed")

		bayoCharges, err := f.repo.ListCharges(ctx, "bayo", term1)
		require.NoError(t, err)
		require.Len(t, bayoCharges, 1)
		assert.True(t, bayoCharges[0].Amount.Equal(dec("5500")))
	})

	t.Run("zero active entries is a no-op", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)
		f.fees.entries[term1] = nil

		result, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)
		assert.Zero(t, result.UpdatedCount)
		assert.Empty(t, result.Errors)
	})

	t.Run("unknown period is rejected", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		_, err := f.service.GenerateCharges(ctx, calendar.Period{SessionID: "2025", TermID: "t9"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("per-student failure does not abort the batch", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)
		f.repo.failUpserts["ada"] = errRepoDown

		result, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "ada", result.Errors[0].StudentID)
		assert.Equal(t, 2, result.UpdatedCount, "other students still billed")
	})

	t.Run("write invalidates the report cache", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		_, err := f.service.GenerateCharges(ctx, term1)
		require.NoError(t, err)
		assert.Equal(t, 1, f.invalidator.bumps)
	})
}

func TestGenerateChargesHeterogeneousClassTotal(t *testing.T) {
	// A class where streams pay different totals: the class aggregate
	// must sum per-student figures, not multiply one figure by headcount.
	ctx := context.Background()
	f := newFixture(PolicyAdditive)
	f.calendar.periods = []calendar.Period{term1}
	f.directory.students = []directory.Student{
		{ID: "g1", ClassLevel: "SS1", Stream: "Science", Active: true},
		{ID: "g2", ClassLevel: "SS1", Stream: "Science", Active: true},
		{ID: "g3", ClassLevel: "SS1", Stream: "Arts", Active: true},
	}
	f.fees.entries[term1] = []feeschedule.Entry{
		{ClassLevel: "SS1", Purpose: "Tuition", Amount: dec("5000"), Active: true},
		{ClassLevel: "SS1", Stream: "Science", Purpose: "Tuition", Amount: dec("1500"), Active: true},
	}

	_, err := f.service.GenerateCharges(ctx, term1)
	require.NoError(t, err)

	balances, err := f.service.BalancesForClass(ctx, "SS1", term1)
	require.NoError(t, err)
	require.Len(t, balances, 3)

	total := dec("0")
	for _, b := range balances {
		total = total.Add(b.TotalBilled)
	}
	assert.True(t, total.Equal(dec("18000")), "6500 + 6500 + 5000")
}
