package procurement

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

// Handler serves procurement endpoints.
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

// MountRoutes attaches procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects", h.listProjects)
	r.Get("/projects/{id}", h.showProject)
	r.Get("/projects/{id}/balance", h.balance)
	r.With(h.rbac.Require(rbac.ActionProjectManage)).Post("/projects", h.createProject)
	r.With(h.rbac.Require(rbac.ActionProjectManage)).Post("/projects/{id}/transition", h.transitionProject)
	r.With(h.rbac.Require(rbac.ActionProjectManage)).Post("/projects/{id}/vendors", h.addVendor)
	r.With(h.rbac.Require(rbac.ActionProjectManage)).Post("/projects/{id}/opportunities", h.linkOpportunity)
	r.Get("/purchase-orders/{id}", h.showPO)
	r.With(h.rbac.Require(rbac.ActionPurchaseOrderManage)).Post("/purchase-orders", h.createPO)
	r.With(h.rbac.Require(rbac.ActionPurchaseOrderManage)).Post("/purchase-orders/{id}/transition", h.transitionPO)
	r.With(h.rbac.Require(rbac.ActionPurchaseOrderManage)).Post("/purchase-orders/{id}/pdf", h.attachPDF)
	r.With(h.rbac.Require(rbac.ActionGoodsReceiptCreate)).Post("/purchase-orders/{id}/grn", h.createGRN)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := shared.ListParams(q)
	items, total, err := h.service.ListProjects(r.Context(), ProjectFilter{
		Type:   ProjectType(q.Get("type")),
		Status: ProjectStatus(q.Get("status")),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(offset/limit+1, limit, total),
	})
}

func (h *Handler) showProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	detail, err := h.service.GetProject(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project id")
		return
	}
	balance, err := h.service.ProjectBalance(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
		Type string `json:"type" validate:"required"`
		Note string `json:"note"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("name and type are required"))
		return
	}
	p, err := h.service.CreateProject(r.Context(), req.Name, ProjectType(req.Type), req.Note)
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.ResultError(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, p)
}

func (h *Handler) transitionProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid project id"))
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.TransitionProject(r.Context(), id, ProjectStatus(req.Status)); err != nil {
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) addVendor(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid project id"))
		return
	}
	var req struct {
		VendorID int64 `json:"vendor_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.AddVendor(r.Context(), id, req.VendorID); err != nil {
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) linkOpportunity(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid project id"))
		return
	}
	var req struct {
		OpportunityID int64 `json:"opportunity_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.LinkOpportunity(r.Context(), id, req.OpportunityID); err != nil {
		h.logger.Error("link opportunity", slog.Any("error", err), slog.Int64("project_id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) showPO(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	po, err := h.service.GetPO(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

type poRequest struct {
	ProjectID   int64   `json:"project_id" validate:"required"`
	VendorID    int64   `json:"vendor_id" validate:"required"`
	SampleID    int64   `json:"sample_id"`
	Number      string  `json:"number"`
	Quantity    float64 `json:"quantity"`
	TotalAmount float64 `json:"total_amount"`
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var req poRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("project_id and vendor_id are required"))
		return
	}
	po, warning, err := h.service.CreatePO(r.Context(), POInput{
		ProjectID:   req.ProjectID,
		VendorID:    req.VendorID,
		SampleID:    req.SampleID,
		Number:      req.Number,
		Quantity:    req.Quantity,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusCreated, map[string]any{"purchase_order": po, "warning": warning})
}

func (h *Handler) transitionPO(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid purchase order id"))
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.TransitionPO(r.Context(), id, POStatus(req.Status)); err != nil {
		h.logger.Error("transition purchase order", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) attachPDF(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid purchase order id"))
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.AttachPDF(r.Context(), id, req.URL); err != nil {
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) createGRN(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid purchase order id"))
		return
	}
	var req struct {
		TotalReceivedQuantity float64 `json:"total_received_quantity"`
		RejectedQuantity      float64 `json:"rejected_quantity"`
		ReceivedBy            string  `json:"received_by"`
		Note                  string  `json:"note"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	grn, err := h.service.CreateGRN(r.Context(), GRNInput{
		PurchaseOrderID:       id,
		TotalReceivedQuantity: req.TotalReceivedQuantity,
		RejectedQuantity:      req.RejectedQuantity,
		ReceivedBy:            req.ReceivedBy,
		Note:                  req.Note,
	})
	if err != nil {
		h.logger.Error("create grn", slog.Any("error", err), slog.Int64("po_id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusCreated, grn)
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.ErrNotFound
	}
	return err
}
