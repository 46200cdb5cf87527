package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/supratours/virements/internal/auth"
	"github.com/supratours/virements/internal/dashboard"
	"github.com/supratours/virements/internal/entries"
	"github.com/supratours/virements/internal/internships"
	"github.com/supratours/virements/internal/masterdata/accounts"
	"github.com/supratours/virements/internal/masterdata/beneficiaries"
	"github.com/supratours/virements/internal/masterdata/contracts"
	"github.com/supratours/virements/internal/observability"
	"github.com/supratours/virements/internal/omra"
	"github.com/supratours/virements/internal/payables"
	"github.com/supratours/virements/internal/platform/httpx"
	"github.com/supratours/virements/internal/rbac"
	"github.com/supratours/virements/internal/shared"
	"github.com/supratours/virements/internal/tenders"
	"github.com/supratours/virements/jobs"
	"github.com/supratours/virements/report"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are skipped.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Metrics        *observability.Metrics
	RBAC           rbac.Middleware

	AuthHandler          *auth.Handler
	BeneficiariesHandler *beneficiaries.Handler
	AccountsHandler      *accounts.Handler
	ContractsHandler     *contracts.Handler
	PayablesHandler      *payables.Handler
	DashboardHandler     *dashboard.Handler
	TendersHandler       *tenders.Handler
	OmraHandler          *omra.Handler
	InternshipsHandler   *internships.Handler
	EntriesHandler       *entries.Handler
	RBACHandler          *rbac.Handler
	JobHandler           *jobs.Handler
	ReportHandler        *report.Handler
}

// NewRouter constructs the chi.Router serving the JSON API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Route("/public", func(r chi.Router) {
			mount(r, "/tenders", params.TendersHandler != nil, func(r chi.Router) { params.TendersHandler.MountPublic(r) })
			mount(r, "/omra", params.OmraHandler != nil, func(r chi.Router) { params.OmraHandler.MountPublic(r) })
			mount(r, "/internships", params.InternshipsHandler != nil, func(r chi.Router) { params.InternshipsHandler.MountPublic(r) })
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			mount(r, "/beneficiaries", params.BeneficiariesHandler != nil, func(r chi.Router) { params.BeneficiariesHandler.MountRoutes(r) })
			mount(r, "/accounts", params.AccountsHandler != nil, func(r chi.Router) { params.AccountsHandler.MountRoutes(r) })
			mount(r, "/contracts", params.ContractsHandler != nil, func(r chi.Router) { params.ContractsHandler.MountRoutes(r) })
			mount(r, "/payables", params.PayablesHandler != nil, func(r chi.Router) { params.PayablesHandler.MountRoutes(r) })
			mount(r, "/dashboard", params.DashboardHandler != nil, func(r chi.Router) { params.DashboardHandler.MountRoutes(r) })
			mount(r, "/tenders", params.TendersHandler != nil, func(r chi.Router) { params.TendersHandler.MountRoutes(r) })
			mount(r, "/omra", params.OmraHandler != nil, func(r chi.Router) { params.OmraHandler.MountRoutes(r) })
			mount(r, "/internships", params.InternshipsHandler != nil, func(r chi.Router) { params.InternshipsHandler.MountRoutes(r) })
			mount(r, "/entries", params.EntriesHandler != nil, func(r chi.Router) { params.EntriesHandler.MountRoutes(r) })
			mount(r, "/rbac", params.RBACHandler != nil, func(r chi.Router) { params.RBACHandler.MountRoutes(r) })
			mount(r, "/jobs", params.JobHandler != nil, func(r chi.Router) { params.JobHandler.MountRoutes(r) })
			mount(r, "/report", params.ReportHandler != nil, func(r chi.Router) { params.ReportHandler.MountRoutes(r) })

			r.Route("/lookups", func(r chi.Router) {
				r.Use(params.RBAC.RequireAny(rbac.PermMasterdataView, rbac.PermPayablesView, rbac.PermPayablesEdit))
				if params.BeneficiariesHandler != nil {
					r.Get("/beneficiaries", params.BeneficiariesHandler.Lookup)
				}
				if params.AccountsHandler != nil {
					r.Get("/accounts", params.AccountsHandler.Lookup)
				}
				if params.ContractsHandler != nil {
					r.Get("/contracts", params.ContractsHandler.Lookup)
				}
				if params.PayablesHandler != nil {
					params.PayablesHandler.MountLookups(r)
				}
			})
		})
	})
	return r
}

func mount(r chi.Router, pattern string, ok bool, fn func(chi.Router)) {
	if ok {
		r.Route(pattern, fn)
	}
}
