package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tradeflow-erp/tradeflow/internal/auth"
	"github.com/tradeflow-erp/tradeflow/internal/billing"
	"github.com/tradeflow-erp/tradeflow/internal/companies"
	"github.com/tradeflow-erp/tradeflow/internal/finance"
	"github.com/tradeflow-erp/tradeflow/internal/observability"
	"github.com/tradeflow-erp/tradeflow/internal/opportunities"
	"github.com/tradeflow-erp/tradeflow/internal/procurement"
	"github.com/tradeflow-erp/tradeflow/internal/salesorders"
	"github.com/tradeflow-erp/tradeflow/internal/samples"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
	"github.com/tradeflow-erp/tradeflow/internal/shipments"
	"github.com/tradeflow-erp/tradeflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler          *auth.Handler
	CompaniesHandler     *companies.Handler
	OpportunitiesHandler *opportunities.Handler
	SamplesHandler       *samples.Handler
	ProcurementHandler   *procurement.Handler
	ShipmentsHandler     *shipments.Handler
	SalesOrdersHandler   *salesorders.Handler
	BillingHandler       *billing.Handler
	FinanceHandler       *finance.Handler
	JobHandler           *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with TradeFlow defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/companies", params.CompaniesHandler.MountRoutes)
	r.Route("/opportunities", params.OpportunitiesHandler.MountRoutes)
	r.Route("/samples", params.SamplesHandler.MountRoutes)
	r.Route("/procurement", params.ProcurementHandler.MountRoutes)
	r.Route("/shipments", params.ShipmentsHandler.MountRoutes)
	r.Route("/sales-orders", params.SalesOrdersHandler.MountRoutes)
	r.Route("/billing", params.BillingHandler.MountRoutes)
	r.Route("/finance", params.FinanceHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
