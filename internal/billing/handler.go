package billing

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

// Handler serves billing endpoints.
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

// MountRoutes attaches billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/documents", h.listDocuments)
	r.Get("/documents/{id}", h.showDocument)
	r.Get("/transactions", h.listTransactions)
	r.With(h.rbac.Require(rbac.ActionPaymentApply)).Post("/documents", h.createDocument)
	r.With(h.rbac.Require(rbac.ActionPaymentApply)).Post("/documents/{id}/payments", h.applyPayment)
	r.With(h.rbac.Require(rbac.ActionLedgerRecord)).Post("/transactions", h.recordLedgerEntry)
}

type documentRequest struct {
	Kind            string  `json:"kind" validate:"required"`
	Number          string  `json:"number"`
	CompanyID       int64   `json:"company_id" validate:"required"`
	SalesOrderID    int64   `json:"sales_order_id"`
	PurchaseOrderID int64   `json:"purchase_order_id"`
	Total           float64 `json:"total"`
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID, _ := strconv.ParseInt(q.Get("company_id"), 10, 64)
	limit, offset := shared.ListParams(q)
	items, total, err := h.service.ListDocuments(r.Context(), ListFilter{
		Kind:      DocKind(q.Get("kind")),
		CompanyID: companyID,
		Status:    DocStatus(q.Get("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(offset/limit+1, limit, total),
	})
}

func (h *Handler) showDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
		return
	}
	d, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	items, err := h.service.ListTransactions(r.Context(), TransactionFilter{
		Type:  TransactionType(q.Get("type")),
		From:  q.Get("from"),
		To:    q.Get("to"),
		Limit: limit,
	})
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("kind and company_id are required"))
		return
	}
	d, err := h.service.CreateDocument(r.Context(), DocumentInput{
		Kind:            DocKind(req.Kind),
		Number:          req.Number,
		CompanyID:       req.CompanyID,
		SalesOrderID:    req.SalesOrderID,
		PurchaseOrderID: req.PurchaseOrderID,
		Total:           req.Total,
	})
	if err != nil {
		h.logger.Error("create document", slog.Any("error", err))
		httpx.ResultError(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, d)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid document id"))
		return
	}
	var req struct {
		Amount         float64 `json:"amount" validate:"required,gt=0"`
		Note           string  `json:"note"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("amount must be greater than zero"))
		return
	}
	d, err := h.service.ApplyPayment(r.Context(), id, PaymentInput{
		Amount:         req.Amount,
		Note:           req.Note,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.logger.Error("apply payment", slog.Any("error", err), slog.Int64("document_id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, d)
}

func (h *Handler) recordLedgerEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string  `json:"type"`
		Amount   float64 `json:"amount"`
		Category string  `json:"category"`
		Note     string  `json:"note"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	entry, err := h.service.RecordLedgerEntry(r.Context(), LedgerInput{
		Type:     TransactionType(req.Type),
		Amount:   req.Amount,
		Category: req.Category,
		Note:     req.Note,
	})
	if err != nil {
		httpx.ResultError(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, entry)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.ErrNotFound
	}
	return err
}
