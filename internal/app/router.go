package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campusledger/campusledger/internal/billing"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/feeschedule"
	"github.com/campusledger/campusledger/internal/observability"
	"github.com/campusledger/campusledger/internal/reports"
	"github.com/campusledger/campusledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	BillingHandler     *billing.Handler
	DirectoryHandler   *directory.Handler
	FeeScheduleHandler *feeschedule.Handler
	ReportsHandler     *reports.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with CampusLedger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/billing", params.BillingHandler.MountRoutes)
	r.Route("/directory", params.DirectoryHandler.MountRoutes)
	r.Route("/feeschedule", params.FeeScheduleHandler.MountRoutes)
	r.Route("/reports", params.ReportsHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
