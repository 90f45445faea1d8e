package reports

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/platform/httpx"
)

// Handler serves report endpoints. Reads are cached in Redis keyed on
// the ledger version, and concurrent identical requests are collapsed
// through singleflight so a dashboard refresh storm computes once.
type Handler struct {
	logger  *slog.Logger
	service *Service
	cache   *Cache
	group   singleflight.Group
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/classes/{classLevel}/summary", h.classSummary)
	r.Get("/classes/{classLevel}/summary.csv", h.classSummaryCSV)
	r.Get("/aging", h.aging)
}

func (h *Handler) loadClassSummary(ctx context.Context, classLevel string, period calendar.Period) (*ClassSummary, error) {
	key, err := h.cache.BuildKey(ctx, "reports", "class", classLevel, period.SessionID, period.TermID)
	if err != nil {
		return nil, err
	}
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		var summary ClassSummary
		err := h.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
			return h.service.ClassSummary(ctx, classLevel, period)
		})
		if err != nil {
			return nil, err
		}
		return &summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ClassSummary), nil
}

// classSummary returns expected/collected/outstanding for one class.
func (h *Handler) classSummary(w http.ResponseWriter, r *http.Request) {
	classLevel := chi.URLParam(r, "classLevel")
	period := calendar.Period{
		SessionID: r.URL.Query().Get("session_id"),
		TermID:    r.URL.Query().Get("term_id"),
	}
	summary, err := h.loadClassSummary(r.Context(), classLevel, period)
	if err != nil {
		h.logger.Error("class summary", slog.Any("error", err), slog.String("class_level", classLevel))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// classSummaryCSV streams the class summary as a CSV download.
func (h *Handler) classSummaryCSV(w http.ResponseWriter, r *http.Request) {
	classLevel := chi.URLParam(r, "classLevel")
	period := calendar.Period{
		SessionID: r.URL.Query().Get("session_id"),
		TermID:    r.URL.Query().Get("term_id"),
	}
	summary, err := h.loadClassSummary(r.Context(), classLevel, period)
	if err != nil {
		h.logger.Error("class summary csv", slog.Any("error", err), slog.String("class_level", classLevel))
		httpx.RespondError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := WriteClassSummaryCSV(&buf, summary); err != nil {
		h.logger.Error("write class summary csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="class_summary.csv"`)
	_, _ = w.Write(buf.Bytes())
}

// aging returns the current/carried debt split for a period.
func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	period := calendar.Period{
		SessionID: r.URL.Query().Get("session_id"),
		TermID:    r.URL.Query().Get("term_id"),
	}
	key, err := h.cache.BuildKey(r.Context(), "reports", "aging", period.SessionID, period.TermID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		var summary AgingSummary
		err := h.cache.FetchJSON(r.Context(), key, &summary, func(ctx context.Context) (interface{}, error) {
			return h.service.AgingSummary(ctx, period)
		})
		if err != nil {
			return nil, err
		}
		return &summary, nil
	})
	if err != nil {
		h.logger.Error("aging summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}
