package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fims-logistics/fims/internal/billing"
	"github.com/fims-logistics/fims/internal/dispatch"
	"github.com/fims-logistics/fims/internal/masterdata"
	"github.com/fims-logistics/fims/internal/observability"
	"github.com/fims-logistics/fims/internal/rake"
	"github.com/fims-logistics/fims/internal/transport"
	"github.com/fims-logistics/fims/internal/warehouse"
	"github.com/fims-logistics/fims/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	RakeHandler       *rake.Handler
	DispatchHandler   *dispatch.Handler
	TransportHandler  *transport.Handler
	WarehouseHandler  *warehouse.Handler
	BillingHandler    *billing.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router for the ledger API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/rakes", params.RakeHandler.MountRoutes)
	r.Route("/allocations", params.DispatchHandler.MountRoutes)
	r.Route("/documents", params.TransportHandler.MountRoutes)
	r.Route("/warehouses", params.WarehouseHandler.MountRoutes)
	r.Route("/bills", params.BillingHandler.MountRoutes)
	r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
