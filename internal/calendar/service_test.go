package calendar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusledger/campusledger/internal/shared"
)

type memoryCalendarRepo struct {
	periods []Period
	names   map[[2]string]Period
	current *Period
}

func (r *memoryCalendarRepo) ResolvePeriod(ctx context.Context, sessionName, termName string) (Period, error) {
	p, ok := r.names[[2]string{sessionName, termName}]
	if !ok {
		return Period{}, shared.NewNotFoundError("period", sessionName+"/"+termName)
	}
	return p, nil
}

func (r *memoryCalendarRepo) ListPeriods(ctx context.Context) ([]Period, error) {
	return r.periods, nil
}

func (r *memoryCalendarRepo) CurrentPeriod(ctx context.Context) (Period, error) {
	if r.current == nil {
		return Period{}, shared.NewNotFoundError("period", "current")
	}
	return *r.current, nil
}

func (r *memoryCalendarRepo) PeriodExists(ctx context.Context, p Period) (bool, error) {
	for _, known := range r.periods {
		if known == p {
			return true, nil
		}
	}
	return false, nil
}

func TestPriorPeriod(t *testing.T) {
	t1 := Period{SessionID: "2024", TermID: "t3"}
	t2 := Period{SessionID: "2025", TermID: "t1"}
	t3 := Period{SessionID: "2025", TermID: "t2"}
	svc := NewService(&memoryCalendarRepo{periods: []Period{t1, t2, t3}})
	ctx := context.Background()

	prior, err := svc.PriorPeriod(ctx, t3)
	require.NoError(t, err)
	assert.Equal(t, t2, prior)

	prior, err = svc.PriorPeriod(ctx, t2)
	require.NoError(t, err)
	assert.Equal(t, t1, prior, "prior crosses the session boundary")

	_, err = svc.PriorPeriod(ctx, t1)
	assert.ErrorIs(t, err, shared.ErrNotFound, "earliest period has no prior")

	_, err = svc.PriorPeriod(ctx, Period{SessionID: "2030", TermID: "t1"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestValidate(t *testing.T) {
	t1 := Period{SessionID: "2025", TermID: "t1"}
	svc := NewService(&memoryCalendarRepo{periods: []Period{t1}})
	ctx := context.Background()

	assert.NoError(t, svc.Validate(ctx, t1))
	assert.ErrorIs(t, svc.Validate(ctx, Period{TermID: "t1"}), shared.ErrValidation)
	assert.ErrorIs(t, svc.Validate(ctx, Period{SessionID: "2025"}), shared.ErrValidation)
	assert.ErrorIs(t, svc.Validate(ctx, Period{SessionID: "2025", TermID: "t9"}), shared.ErrNotFound)
}

func TestResolve(t *testing.T) {
	t1 := Period{SessionID: "sid", TermID: "tid"}
	svc := NewService(&memoryCalendarRepo{
		periods: []Period{t1},
		names:   map[[2]string]Period{{"2025/2026", "First Term"}: t1},
	})
	ctx := context.Background()

	p, err := svc.Resolve(ctx, "2025/2026", "First Term")
	require.NoError(t, err)
	assert.Equal(t, t1, p)

	_, err = svc.Resolve(ctx, "", "First Term")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Resolve(ctx, "2025/2026", "Fourth Term")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
