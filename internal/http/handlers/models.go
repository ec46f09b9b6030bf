package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListModels serves the cached model catalog grouped by category.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"categories": a.Catalog.Categories(),
		"models":     a.Catalog.Models(),
	})
}

// RefreshModels reloads the catalog from the remote registry.
func (a *App) RefreshModels(w http.ResponseWriter, r *http.Request) {
	if err := a.Catalog.Refresh(r.Context()); err != nil {
		a.Logger.Error().Err(err).Msg("catalog refresh failed")
		a.error(w, http.StatusBadGateway, err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"models": len(a.Catalog.Models()),
	})
}

// GetSchema serves the cached parameter schema for one model.
func (a *App) GetSchema(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	subcategory := chi.URLParam(r, "subcategory")
	schema, ok := a.Catalog.SchemaFor(category, subcategory)
	if !ok {
		a.error(w, http.StatusNotFound, "schema not found")
		return
	}
	a.json(w, http.StatusOK, schema)
}
