package shipments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeflow-erp/tradeflow/internal/platform/httpx"
	"github.com/tradeflow-erp/tradeflow/internal/rbac"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
)

// Handler serves shipment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes attaches shipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.show)
	r.With(h.rbac.Require(rbac.ActionShipmentManage)).Post("/", h.create)
	r.With(h.rbac.Require(rbac.ActionShipmentManage)).Post("/{id}/status", h.updateStatus)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shipment id")
		return
	}
	sh, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, sh)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PurchaseOrderID int64     `json:"purchase_order_id"`
		SalesOrderID    int64     `json:"sales_order_id"`
		Carrier         string    `json:"carrier"`
		TrackingNumber  string    `json:"tracking_number"`
		Quantity        float64   `json:"quantity"`
		ETA             time.Time `json:"eta"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	sh, err := h.service.Create(r.Context(), Input{
		PurchaseOrderID: req.PurchaseOrderID,
		SalesOrderID:    req.SalesOrderID,
		Carrier:         req.Carrier,
		TrackingNumber:  req.TrackingNumber,
		Quantity:        req.Quantity,
		ETA:             req.ETA,
	})
	if err != nil {
		h.logger.Error("create shipment", slog.Any("error", err))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusCreated, sh)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid shipment id"))
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.UpdateStatus(r.Context(), id, Status(req.Status)); err != nil {
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.ErrNotFound
	}
	return err
}
