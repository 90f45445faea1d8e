package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/campusledger/campusledger/internal/platform/httpx"
	"github.com/campusledger/campusledger/internal/shared"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueGenerateCharges enqueues a charge generation run.
func (c *Client) EnqueueGenerateCharges(ctx context.Context, payload PeriodRunPayload) (*asynq.TaskInfo, error) {
	task, err := NewGenerateChargesTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueCarryForward enqueues a carry-forward run.
func (c *Client) EnqueueCarryForward(ctx context.Context, payload PeriodRunPayload) (*asynq.TaskInfo, error) {
	task, err := NewCarryForwardTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Handler exposes HTTP endpoints for enqueueing billing runs and
// observing queue depth.
type Handler struct {
	client    *Client
	inspector *asynq.Inspector
	idem      *shared.IdempotencyStore
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. The
// idempotency store is optional; without it duplicate submissions rely
// on the billing runs themselves being re-run safe.
func NewHandler(client *Client, inspector *asynq.Inspector, idem *shared.IdempotencyStore, logger *slog.Logger) *Handler {
	return &Handler{client: client, inspector: inspector, idem: idem, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/generate-charges", h.enqueueGenerateCharges)
	r.Post("/carry-forward", h.enqueueCarryForward)
}

func (h *Handler) decodeRun(r *http.Request) (PeriodRunPayload, error) {
	var payload PeriodRunPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// claimKey reserves the request's X-Idempotency-Key, when supplied.
// The returned release func rolls the reservation back so a failed
// enqueue can be retried with the same key.
func (h *Handler) claimKey(w http.ResponseWriter, r *http.Request, module string) (release func(), ok bool) {
	key := r.Header.Get("X-Idempotency-Key")
	if h.idem == nil || key == "" {
		return func() {}, true
	}
	if err := h.idem.CheckAndInsert(r.Context(), key, module); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this idempotency key was already used")
			return nil, false
		}
		h.logger.Error("idempotency check", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not record idempotency key")
		return nil, false
	}
	return func() {
		if err := h.idem.Delete(r.Context(), key); err != nil {
			h.logger.Warn("idempotency rollback", slog.Any("error", err))
		}
	}, true
}

func (h *Handler) enqueueGenerateCharges(w http.ResponseWriter, r *http.Request) {
	payload, err := h.decodeRun(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	release, ok := h.claimKey(w, r, TaskTypeGenerateCharges)
	if !ok {
		return
	}
	info, err := h.client.EnqueueGenerateCharges(r.Context(), payload)
	if err != nil {
		release()
		h.logger.Error("enqueue generate charges", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not enqueue task")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}

func (h *Handler) enqueueCarryForward(w http.ResponseWriter, r *http.Request) {
	payload, err := h.decodeRun(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	release, ok := h.claimKey(w, r, TaskTypeCarryForward)
	if !ok {
		return
	}
	info, err := h.client.EnqueueCarryForward(r.Context(), payload)
	if err != nil {
		release()
		h.logger.Error("enqueue carry forward", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not enqueue task")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue":"default","pending":0}`))
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	pending := 0
	queueName := QueueDefault
	if info != nil {
		pending = int(info.Pending)
		queueName = info.Queue
	}
	_, _ = w.Write([]byte(`{"queue":"` + queueName + `","pending":` + strconv.Itoa(pending) + `}`))
}
