package opportunities

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tradeflow-erp/tradeflow/internal/platform/httpx"
	"github.com/tradeflow-erp/tradeflow/internal/rbac"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// Handler serves sales pipeline endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW, validate: validator.New()}
}

// MountRoutes attaches opportunity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Get("/commodities", h.listCommodities)
	r.With(h.rbac.Require(rbac.ActionOpportunityManage)).Post("/", h.create)
	r.With(h.rbac.Require(rbac.ActionOpportunityManage)).Put("/{id}", h.update)
	r.With(h.rbac.Require(rbac.ActionOpportunityManage)).Post("/commodities", h.createCommodity)
	r.With(h.rbac.Require(rbac.ActionOpportunityManage)).Post("/{id}/procurement-quantity", h.overrideQty)
	r.With(h.rbac.Require(rbac.ActionOpportunityTransition)).Post("/{id}/transition", h.transition)
}

type opportunityRequest struct {
	CompanyID   int64   `json:"company_id" validate:"required"`
	CommodityID int64   `json:"commodity_id"`
	ProjectID   int64   `json:"project_id"`
	Title       string  `json:"title" validate:"required"`
	Quantity    float64 `json:"quantity"`
	TargetPrice float64 `json:"target_price"`
	PriceType   string  `json:"price_type"`
	Type        string  `json:"type"`
	Note        string  `json:"note"`
}

func (req opportunityRequest) toInput() Input {
	return Input{
		CompanyID:   req.CompanyID,
		CommodityID: req.CommodityID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Quantity:    req.Quantity,
		TargetPrice: req.TargetPrice,
		PriceType:   PriceType(req.PriceType),
		Type:        Type(req.Type),
		Note:        req.Note,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID, _ := strconv.ParseInt(q.Get("company_id"), 10, 64)
	limit, offset := shared.ListParams(q)
	items, total, err := h.service.List(r.Context(), ListFilter{
		CompanyID: companyID,
		Status:    Status(q.Get("status")),
		Search:    q.Get("search"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.logger.Error("list opportunities", slog.Any("error", err))
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
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid opportunity id")
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) listCommodities(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCommodities(r.Context())
	if err != nil {
		h.logger.Error("list commodities", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req opportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("company_id and title are required"))
		return
	}
	o, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		h.logger.Error("create opportunity", slog.Any("error", err))
		httpx.ResultError(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, o)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid opportunity id"))
		return
	}
	var req opportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("company_id and title are required"))
		return
	}
	o, err := h.service.Update(r.Context(), id, req.toInput())
	if err != nil {
		h.logger.Error("update opportunity", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, o)
}

func (h *Handler) createCommodity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string  `json:"name" validate:"required"`
		YieldPercentage float64 `json:"yield_percentage"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("commodity name is required"))
		return
	}
	c, err := h.service.CreateCommodity(r.Context(), Commodity{Name: req.Name, YieldPercentage: req.YieldPercentage})
	if err != nil {
		httpx.ResultError(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, c)
}

func (h *Handler) overrideQty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid opportunity id"))
		return
	}
	var req struct {
		Quantity float64 `json:"quantity"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.OverrideProcurementQuantity(r.Context(), id, req.Quantity); err != nil {
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid opportunity id"))
		return
	}
	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("status is required"))
		return
	}
	o, err := h.service.Transition(r.Context(), id, Status(req.Status))
	if err != nil {
		h.logger.Error("transition opportunity", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, o)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.ErrNotFound
	}
	return err
}
