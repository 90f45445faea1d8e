package directory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusledger/campusledger/internal/platform/httpx"
)

// Handler exposes read-only student lookups for admin tooling.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/students", h.listStudents)
	r.Get("/students/{id}", h.getStudent)
}

func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	var (
		students []Student
		err      error
	)
	if classLevel := r.URL.Query().Get("class_level"); classLevel != "" {
		students, err = h.repo.ListActiveByClass(r.Context(), classLevel)
	} else {
		students, err = h.repo.ListActive(r.Context())
	}
	if err != nil {
		h.logger.Error("list students", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, students)
}

func (h *Handler) getStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	student, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, student)
}
