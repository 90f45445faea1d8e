package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeGenerateCharges bills every active student for a period.
	TaskTypeGenerateCharges = "billing:generate_charges"
	// TaskTypeCarryForward rolls unpaid balances into a period.
	TaskTypeCarryForward = "billing:carry_forward"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// PeriodRunPayload identifies the period a billing run targets and who
// asked for it.
type PeriodRunPayload struct {
	SessionID   string `json:"session_id"`
	TermID      string `json:"term_id"`
	RequestedBy string `json:"requested_by"`
}

// NewGenerateChargesTask constructs an Asynq task.
func NewGenerateChargesTask(payload PeriodRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateCharges, data), nil
}

// NewCarryForwardTask constructs an Asynq task.
func NewCarryForwardTask(payload PeriodRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCarryForward, data), nil
}

// NewIdempotencyCleanupTask constructs the cron cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}

// BillingRunner is the slice of the billing engine the worker invokes.
type BillingRunner interface {
	GenerateCharges(ctx context.Context, period calendar.Period) (shared.BatchResult, error)
	CarryForwardBalances(ctx context.Context, period calendar.Period) (shared.BatchResult, error)
}

// BillingJob runs period-wide billing batches off the queue so a class
// of hundreds of students never ties up a request handler.
type BillingJob struct {
	billing BillingRunner
	logger  *slog.Logger
}

// NewBillingJob constructs a BillingJob.
func NewBillingJob(billing BillingRunner, logger *slog.Logger) *BillingJob {
	return &BillingJob{billing: billing, logger: logger}
}

func (j *BillingJob) runCtx(ctx context.Context, payload PeriodRunPayload, fallback string) context.Context {
	actor := payload.RequestedBy
	if actor == "" {
		actor = fallback
	}
	return shared.ContextWithCaller(ctx, shared.Caller{ID: actor, Name: "worker"})
}

// HandleGenerateCharges processes TaskTypeGenerateCharges tasks.
// Per-student failures are reported, not retried: the run itself is
// idempotent, so the caller re-enqueues once the data is fixed.
func (j *BillingJob) HandleGenerateCharges(ctx context.Context, t *asynq.Task) error {
	var payload PeriodRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	period := calendar.Period{SessionID: payload.SessionID, TermID: payload.TermID}
	result, err := j.billing.GenerateCharges(j.runCtx(ctx, payload, "job:generate_charges"), period)
	if err != nil {
		j.logger.Error("generate charges job", slog.Any("error", err),
			slog.String("session_id", payload.SessionID), slog.String("term_id", payload.TermID))
		return err
	}
	j.logger.Info("generate charges job done",
		slog.String("session_id", payload.SessionID),
		slog.String("term_id", payload.TermID),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("errors", len(result.Errors)))
	return nil
}

// HandleCarryForward processes TaskTypeCarryForward tasks.
func (j *BillingJob) HandleCarryForward(ctx context.Context, t *asynq.Task) error {
	var payload PeriodRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	period := calendar.Period{SessionID: payload.SessionID, TermID: payload.TermID}
	result, err := j.billing.CarryForwardBalances(j.runCtx(ctx, payload, "job:carry_forward"), period)
	if err != nil {
		j.logger.Error("carry forward job", slog.Any("error", err),
			slog.String("session_id", payload.SessionID), slog.String("term_id", payload.TermID))
		return err
	}
	j.logger.Info("carry forward job done",
		slog.String("session_id", payload.SessionID),
		slog.String("term_id", payload.TermID),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("errors", len(result.Errors)))
	return nil
}

// IdempotencyCleanupJob prunes idempotency keys past the retention
// window. Registered as a nightly cron.
type IdempotencyCleanupJob struct {
	store     *shared.IdempotencyStore
	retention time.Duration
	logger    *slog.Logger
}

// NewIdempotencyCleanupJob constructs an IdempotencyCleanupJob.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, retention: retention, logger: logger}
}

// Handle processes TaskTypeIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if err := j.store.Cleanup(ctx, j.retention); err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	j.logger.Info("idempotency cleanup done", slog.Duration("retention", j.retention))
	return nil
}
