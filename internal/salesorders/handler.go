package salesorders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradeflow-erp/tradeflow/internal/platform/httpx"
	"github.com/tradeflow-erp/tradeflow/internal/rbac"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// Handler serves sales order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes attaches sales order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Get("/{id}/fulfillment", h.fulfillment)
	r.With(h.rbac.Require(rbac.ActionOrderConvert)).Post("/convert", h.convert)
	r.With(h.rbac.Require(rbac.ActionOrderClose)).Post("/{id}/transition", h.transition)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID, _ := strconv.ParseInt(q.Get("company_id"), 10, 64)
	limit, offset := shared.ListParams(q)
	items, total, err := h.service.List(r.Context(), ListFilter{
		CompanyID: companyID,
		Status:    Status(q.Get("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.logger.Error("list sales orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(offset/limit+1, limit, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sales order id")
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) fulfillment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sales order id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	state, err := h.service.Fulfillment(r.Context(), order)
	if err != nil {
		h.logger.Error("order fulfillment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, state)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpportunityID  int64  `json:"opportunity_id"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if req.OpportunityID == 0 {
		httpx.ResultError(w, shared.NewValidationError("opportunity is required"))
		return
	}
	order, err := h.service.ConvertFromOpportunity(r.Context(), req.OpportunityID, req.IdempotencyKey)
	if err != nil {
		h.logger.Error("convert opportunity", slog.Any("error", err), slog.Int64("opportunity_id", req.OpportunityID))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusCreated, order)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid sales order id"))
		return
	}
	var req struct {
		Status  string `json:"status"`
		Remarks string `json:"remarks"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	order, err := h.service.Transition(r.Context(), id, Status(req.Status), req.Remarks)
	if err != nil {
		h.logger.Error("transition sales order", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, order)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.ErrNotFound
	}
	return err
}
