package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/platform/httpx"
	"github.com/campusledger/campusledger/internal/shared"
)

// Handler exposes the billing engine over JSON HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/charges/generate", h.generateCharges)
	r.Post("/carry-forward", h.carryForward)

	r.Post("/payments", h.recordPayment)
	r.Post("/payments/{id}/reverse", h.reversePayment)
	r.Patch("/payments/{id}", h.updatePaymentMeta)

	r.Put("/installment-plans", h.upsertInstallmentPlan)

	r.Get("/students/{studentID}/balance", h.studentBalance)
	r.Get("/students/{studentID}/history", h.studentHistory)
	r.Get("/students/{studentID}/payments", h.listPayments)
	r.Get("/students/{studentID}/installment-progress", h.installmentProgress)
}

type periodRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	TermID    string `json:"term_id" validate:"required"`
}

func (h *Handler) decodePeriod(w http.ResponseWriter, r *http.Request) (calendar.Period, bool) {
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return calendar.Period{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return calendar.Period{}, false
	}
	return calendar.Period{SessionID: req.SessionID, TermID: req.TermID}, true
}

func queryPeriod(r *http.Request) calendar.Period {
	return calendar.Period{
		SessionID: r.URL.Query().Get("session_id"),
		TermID:    r.URL.Query().Get("term_id"),
	}
}

// generateCharges expands the fee schedule into current-term charges.
func (h *Handler) generateCharges(w http.ResponseWriter, r *http.Request) {
	period, ok := h.decodePeriod(w, r)
	if !ok {
		return
	}
	result, err := h.service.GenerateCharges(r.Context(), period)
	if err != nil {
		h.logger.Error("generate charges", slog.Any("error", err),
			slog.String("session_id", period.SessionID), slog.String("term_id", period.TermID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// carryForward snapshots prior-period debt into the target period.
func (h *Handler) carryForward(w http.ResponseWriter, r *http.Request) {
	period, ok := h.decodePeriod(w, r)
	if !ok {
		return
	}
	result, err := h.service.CarryForwardBalances(r.Context(), period)
	if err != nil {
		h.logger.Error("carry forward", slog.Any("error", err),
			slog.String("session_id", period.SessionID), slog.String("term_id", period.TermID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// recordPayment appends a payment row.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var input RecordPaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if input.RecordedBy == "" {
		input.RecordedBy = shared.CallerFromContext(r.Context()).ID
	}
	payment, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err), slog.String("student_id", input.StudentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

// reversePayment appends a negating row for a historical payment.
func (h *Handler) reversePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reversal, err := h.service.ReversePayment(r.Context(), id)
	if err != nil {
		h.logger.Error("reverse payment", slog.Any("error", err), slog.String("payment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

// updatePaymentMeta edits reference/paid-on only.
func (h *Handler) updatePaymentMeta(w http.ResponseWriter, r *http.Request) {
	var input UpdatePaymentMetaInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	input.PaymentID = chi.URLParam(r, "id")
	if err := h.service.UpdatePaymentMeta(r.Context(), input); err != nil {
		h.logger.Error("update payment meta", slog.Any("error", err), slog.String("payment_id", input.PaymentID))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// upsertInstallmentPlan declares or amends the advisory plan.
func (h *Handler) upsertInstallmentPlan(w http.ResponseWriter, r *http.Request) {
	var input UpsertInstallmentPlanInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	plan, err := h.service.UpsertInstallmentPlan(r.Context(), input)
	if err != nil {
		h.logger.Error("upsert installment plan", slog.Any("error", err), slog.String("student_id", input.StudentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

// studentBalance returns the per-purpose and aggregate balance.
func (h *Handler) studentBalance(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	balance, err := h.service.StudentBalance(r.Context(), studentID, queryPeriod(r))
	if err != nil {
		h.logger.Error("student balance", slog.Any("error", err), slog.String("student_id", studentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

// studentHistory returns one student's balances across all periods.
func (h *Handler) studentHistory(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	history, err := h.service.StudentHistory(r.Context(), studentID)
	if err != nil {
		h.logger.Error("student history", slog.Any("error", err), slog.String("student_id", studentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

// listPayments returns a student's payments for one period.
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	payments, err := h.service.ListPayments(r.Context(), studentID, queryPeriod(r))
	if err != nil {
		h.logger.Error("list payments", slog.Any("error", err), slog.String("student_id", studentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

// installmentProgress returns the plan with the derived installment
// counter.
func (h *Handler) installmentProgress(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	progress, err := h.service.GetInstallmentProgress(r.Context(), studentID, queryPeriod(r))
	if err != nil {
		h.logger.Error("installment progress", slog.Any("error", err), slog.String("student_id", studentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, progress)
}
