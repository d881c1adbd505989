package companies

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

// Handler serves company endpoints.
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

// MountRoutes attaches company routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.With(h.rbac.Require(rbac.ActionCompanyManage)).Post("/", h.create)
	r.With(h.rbac.Require(rbac.ActionCompanyManage)).Put("/{id}", h.update)
	r.With(h.rbac.Require(rbac.ActionCompanyDelete)).Delete("/{id}", h.delete)
}

type companyRequest struct {
	Name       string `json:"name" validate:"required"`
	Type       string `json:"type" validate:"required"`
	TrustLevel string `json:"trust_level"`
	Country    string `json:"country"`
	Note       string `json:"note"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := shared.ListParams(q)
	items, total, err := h.service.List(r.Context(), ListFilter{
		Type:   CompanyType(q.Get("type")),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("list companies", slog.Any("error", err))
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
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid company id")
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("name and type are required"))
		return
	}
	c, err := h.service.Create(r.Context(), Company{
		Name:       req.Name,
		Type:       CompanyType(req.Type),
		TrustLevel: TrustLevel(req.TrustLevel),
		Country:    req.Country,
		Note:       req.Note,
	})
	if err != nil {
		h.logger.Error("create company", slog.Any("error", err))
		httpx.ResultError(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid company id"))
		return
	}
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	err = h.service.Update(r.Context(), Company{
		ID:         id,
		Name:       req.Name,
		Type:       CompanyType(req.Type),
		TrustLevel: TrustLevel(req.TrustLevel),
		Country:    req.Country,
		Note:       req.Note,
	})
	if err != nil {
		h.logger.Error("update company", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid company id"))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete company", slog.Any("error", err), slog.Int64("id", id))
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
