package feeschedule

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/platform/httpx"
)

// Handler exposes fee schedule administration over JSON HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers fee schedule routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.upsertEntry)
	r.Post("/entries/{id}/deactivate", h.deactivateEntry)
	r.Get("/entries", h.listEntries)
}

// upsertEntry records a new fee amount, superseding the active version.
func (h *Handler) upsertEntry(w http.ResponseWriter, r *http.Request) {
	var input UpsertEntryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Upsert(r.Context(), input)
	if err != nil {
		h.logger.Error("upsert fee entry", slog.Any("error", err),
			slog.String("class_level", input.ClassLevel), slog.String("purpose", input.Purpose))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// deactivateEntry retires an entry without deleting it.
func (h *Handler) deactivateEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.logger.Error("deactivate fee entry", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listEntries returns fee entries for a period; pass all=true to
// include superseded versions.
func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	period := calendar.Period{
		SessionID: r.URL.Query().Get("session_id"),
		TermID:    r.URL.Query().Get("term_id"),
	}
	var (
		entries []Entry
		err     error
	)
	if r.URL.Query().Get("all") == "true" {
		entries, err = h.service.ListForPeriod(r.Context(), period)
	} else {
		entries, err = h.service.ListActiveForPeriod(r.Context(), period)
	}
	if err != nil {
		h.logger.Error("list fee entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}
