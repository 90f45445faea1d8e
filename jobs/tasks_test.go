package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/shared"
)

type stubRunner struct {
	generated []calendar.Period
	carried   []calendar.Period
	actors    []string
	err       error
}

func (s *stubRunner) GenerateCharges(ctx context.Context, period calendar.Period) (shared.BatchResult, error) {
	s.generated = append(s.generated, period)
	s.actors = append(s.actors, shared.CallerFromContext(ctx).ID)
	return shared.BatchResult{UpdatedCount: 1}, s.err
}

func (s *stubRunner) CarryForwardBalances(ctx context.Context, period calendar.Period) (shared.BatchResult, error) {
	s.carried = append(s.carried, period)
	return shared.BatchResult{}, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleGenerateCharges(t *testing.T) {
	runner := &stubRunner{}
	job := NewBillingJob(runner, discardLogger())

	task, err := NewGenerateChargesTask(PeriodRunPayload{
		SessionID:   "2025",
		TermID:      "t1",
		RequestedBy: "admin-7",
	})
	require.NoError(t, err)

	require.NoError(t, job.HandleGenerateCharges(context.Background(), task))
	require.Len(t, runner.generated, 1)
	assert.Equal(t, calendar.Period{SessionID: "2025", TermID: "t1"}, runner.generated[0])
	assert.Equal(t, "admin-7", runner.actors[0], "requester becomes the audit actor")
}

func TestHandleGenerateChargesBadPayload(t *testing.T) {
	job := NewBillingJob(&stubRunner{}, discardLogger())
	task := asynq.NewTask(TaskTypeGenerateCharges, []byte("{not json"))

	err := job.HandleGenerateCharges(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry, "malformed payloads are dropped, not retried")
}

func TestHandleCarryForwardPropagatesError(t *testing.T) {
	runner := &stubRunner{err: errors.New("db down")}
	job := NewBillingJob(runner, discardLogger())

	task, err := NewCarryForwardTask(PeriodRunPayload{SessionID: "2025", TermID: "t2"})
	require.NoError(t, err)

	assert.Error(t, job.HandleCarryForward(context.Background(), task), "run errors bubble up for retry")
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewCarryForwardTask(PeriodRunPayload{SessionID: "s", TermID: "t", RequestedBy: "who"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeCarryForward, task.Type())

	var payload PeriodRunPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "who", payload.RequestedBy)
}
