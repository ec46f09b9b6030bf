package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"genvrbatch/internal/http/handlers"
	"genvrbatch/internal/infra"
	"genvrbatch/internal/middleware"
)

// NewRouter assembles the daemon's route table.
func NewRouter(app *handlers.App, logger infra.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(allowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/models", func(r chi.Router) {
		r.Get("/", app.ListModels)
		r.Post("/refresh", app.RefreshModels)
		r.Get("/{category}/{subcategory}/schema", app.GetSchema)
	})

	r.Route("/v1/batches", func(r chi.Router) {
		r.Post("/", app.StartBatch)
		r.Get("/{id}", app.GetBatch)
		r.Post("/{id}/cancel", app.CancelBatch)
		r.Post("/{id}/export", app.ExportBatch)
	})

	return r
}
