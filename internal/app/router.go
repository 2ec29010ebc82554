package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/arcbooks/arcbooks/internal/accounts"
	"github.com/arcbooks/arcbooks/internal/history"
	"github.com/arcbooks/arcbooks/internal/journals"
	"github.com/arcbooks/arcbooks/internal/observability"
	"github.com/arcbooks/arcbooks/internal/taxes"
	"github.com/arcbooks/arcbooks/internal/tenant"
	"github.com/arcbooks/arcbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	TenantService  *tenant.Service
	TenantHandler  *tenant.Handler
	AccountHandler *accounts.Handler
	JournalHandler *journals.Handler
	TaxHandler     *taxes.Handler
	HistoryHandler *history.Handler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router. Tenant administration lives outside
// the actor-scoped group; everything under /api/v1 beyond it requires a
// resolvable X-Tenant-ID.
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

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.TenantHandler != nil {
			r.Route("/tenants", params.TenantHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(ActorMiddleware(params.Logger, params.TenantService))

			if params.AccountHandler != nil {
				r.Route("/accounts", params.AccountHandler.MountRoutes)
			}
			if params.JournalHandler != nil {
				r.Route("/journal-entries", params.JournalHandler.MountRoutes)
			}
			if params.TaxHandler != nil {
				r.Route("/taxes", params.TaxHandler.MountRoutes)
			}
			if params.HistoryHandler != nil {
				r.Route("/balance-history", params.HistoryHandler.MountRoutes)
			}
		})
	})

	return r
}
