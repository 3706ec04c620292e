package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tooldesk/tooldesk/internal/auth"
	"github.com/tooldesk/tooldesk/internal/companies"
	"github.com/tooldesk/tooldesk/internal/observability"
	"github.com/tooldesk/tooldesk/internal/platform/httpx"
	"github.com/tooldesk/tooldesk/internal/tools"
	"github.com/tooldesk/tooldesk/internal/users"
	"github.com/tooldesk/tooldesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Authenticator    *auth.Middleware
	UsersHandler     *users.Handler
	ToolsHandler     *tools.Handler
	CompaniesHandler *companies.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	AccessLog        bool
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "Route not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "Method not allowed.")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.UsersHandler != nil {
		params.UsersHandler.MountPublic(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Authenticate)

		if params.UsersHandler != nil {
			params.UsersHandler.MountProtected(r)
		}
		if params.ToolsHandler != nil {
			params.ToolsHandler.MountRoutes(r)
		}
		if params.CompaniesHandler != nil {
			params.CompaniesHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
