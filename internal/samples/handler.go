package samples

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

// Handler serves sample workflow endpoints.
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

// MountRoutes attaches sample routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.show)
	r.With(h.rbac.Require(rbac.ActionSampleManage)).Post("/", h.request)
	r.With(h.rbac.Require(rbac.ActionSampleManage)).Post("/{id}/transition", h.transition)
	r.With(h.rbac.Require(rbac.ActionSampleManage)).Post("/{id}/images", h.attachImage)
	r.With(h.rbac.Require(rbac.ActionSampleManage)).Post("/{id}/price", h.quotePrice)
	r.With(h.rbac.Require(rbac.ActionSampleManage)).Post("/{id}/submissions", h.submit)
	r.With(h.rbac.Require(rbac.ActionSampleReview)).Post("/submissions/{submissionID}/review", h.review)
}

type requestSampleRequest struct {
	VendorID    int64   `json:"vendor_id" validate:"required"`
	ProjectID   int64   `json:"project_id" validate:"required"`
	PriceQuoted float64 `json:"price_quoted"`
	Note        string  `json:"note"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sample id")
		return
	}
	sample, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapNotFound(err))
		return
	}
	httpx.JSON(w, http.StatusOK, sample)
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	var req requestSampleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("vendor_id and project_id are required"))
		return
	}
	sample, err := h.service.Request(r.Context(), RequestInput{
		VendorID:    req.VendorID,
		ProjectID:   req.ProjectID,
		PriceQuoted: req.PriceQuoted,
		Note:        req.Note,
	})
	if err != nil {
		h.logger.Error("request sample", slog.Any("error", err))
		httpx.ResultError(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, sample)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid sample id"))
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
	if err := h.service.Transition(r.Context(), id, SampleStatus(req.Status)); err != nil {
		h.logger.Error("transition sample", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) attachImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid sample id"))
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.AttachImage(r.Context(), id, req.URL); err != nil {
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) quotePrice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid sample id"))
		return
	}
	var req struct {
		Price float64 `json:"price"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.QuotePrice(r.Context(), id, req.Price); err != nil {
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid sample id"))
		return
	}
	var req struct {
		OpportunityID int64 `json:"opportunity_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if req.OpportunityID == 0 {
		httpx.ResultError(w, shared.NewValidationError("opportunity is required"))
		return
	}
	sub, err := h.service.SubmitToOpportunity(r.Context(), id, req.OpportunityID)
	if err != nil {
		h.logger.Error("submit sample", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusCreated, sub)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "submissionID")
	if err != nil {
		httpx.ResultError(w, shared.NewValidationError("invalid submission id"))
		return
	}
	var req struct {
		Approved bool `json:"approved"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ResultError(w, shared.NewValidationError("request body must be valid JSON"))
		return
	}
	if err := h.service.ReviewSubmission(r.Context(), id, req.Approved); err != nil {
		h.logger.Error("review submission", slog.Any("error", err), slog.Int64("id", id))
		httpx.ResultError(w, mapNotFound(err))
		return
	}
	httpx.Result(w, http.StatusOK, nil)
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return shared.ErrNotFound
	}
	return err
}
