package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusledger/campusledger/internal/shared"
)

func TestInstallmentPlans(t *testing.T) {
	ctx := shared.ContextWithCaller(context.Background(), shared.Caller{ID: "bursar-1"})

	declare := func(t *testing.T, f *fixture) *InstallmentPlan {
		plan, err := f.service.UpsertInstallmentPlan(ctx, UpsertInstallmentPlanInput{
			StudentID:              "ada",
			SessionID:              term1.SessionID,
			TermID:                 term1.TermID,
			TotalInstallments:      3,
			ExpectedPerInstallment: dec("2000"),
		})
		require.NoError(t, err)
		return plan
	}

	t.Run("one logical plan per student and period", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		first := declare(t, f)
		amended, err := f.service.UpsertInstallmentPlan(ctx, UpsertInstallmentPlanInput{
			StudentID:              "ada",
			SessionID:              term1.SessionID,
			TermID:                 term1.TermID,
			TotalInstallments:      4,
			ExpectedPerInstallment: dec("1500"),
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, amended.ID, "amending replaces, never duplicates")
		assert.Equal(t, 4, amended.TotalInstallments)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		_, err := f.service.UpsertInstallmentPlan(ctx, UpsertInstallmentPlanInput{
			StudentID: "ada", SessionID: "2025", TermID: "t1",
			TotalInstallments: 0, ExpectedPerInstallment: dec("2000"),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = f.service.UpsertInstallmentPlan(ctx, UpsertInstallmentPlanInput{
			StudentID: "ada", SessionID: "2025", TermID: "t1",
			TotalInstallments: 3, ExpectedPerInstallment: dec("0"),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("progress derives from payments", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)
		declare(t, f)

		_, err := f.service.RecordPayment(ctx, RecordPaymentInput{
			StudentID: "ada", SessionID: term1.SessionID, TermID: term1.TermID,
			Purpose: "Tuition", Amount: dec("4500"), Method: MethodCash,
		})
		require.NoError(t, err)

		progress, err := f.service.GetInstallmentProgress(ctx, "ada", term1)
		require.NoError(t, err)
		assert.True(t, progress.TotalPaid.Equal(dec("4500")))
		assert.Equal(t, 2, progress.CurrentInstallment, "floor(4500/2000)")
	})

	t.Run("progress is capped at the plan total", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)
		declare(t, f)

		_, err := f.service.RecordPayment(ctx, RecordPaymentInput{
			StudentID: "ada", SessionID: term1.SessionID, TermID: term1.TermID,
			Purpose: "Tuition", Amount: dec("99000"), Method: MethodCash,
		})
		require.NoError(t, err)

		progress, err := f.service.GetInstallmentProgress(ctx, "ada", term1)
		require.NoError(t, err)
		assert.Equal(t, 3, progress.CurrentInstallment)
	})

	t.Run("no declared plan", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)

		_, err := f.service.GetInstallmentProgress(ctx, "ada", term1)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("plans never gate payments", func(t *testing.T) {
		f := newFixture(PolicyAdditive)
		seedClass(f)
		declare(t, f)

		// A payment of any size is accepted regardless of the plan.
		_, err := f.service.RecordPayment(ctx, RecordPaymentInput{
			StudentID: "ada", SessionID: term1.SessionID, TermID: term1.TermID,
			Purpose: "Tuition", Amount: dec("17"), Method: MethodCash,
		})
		assert.NoError(t, err)
	})
}
