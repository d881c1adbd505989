package finance

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradeflow-erp/tradeflow/internal/platform/httpx"
	"github.com/tradeflow-erp/tradeflow/internal/rbac"
)

// Handler serves financial summary endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes attaches finance routes. Summaries carry margin data, so even
// reads are role gated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ActionFinanceView)).Get("/summary", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.service.Summary(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.logger.Error("finance summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
