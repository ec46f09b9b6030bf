package handlers

import (
	"encoding/json"
	"net/http"

	"genvrbatch/internal/batch"
	"genvrbatch/internal/catalog"
	"genvrbatch/internal/infra"
	"genvrbatch/internal/storage"
)

// App is the handler container for the local daemon API.
type App struct {
	Manager     *batch.Manager
	Catalog     *catalog.Catalog
	Store       *storage.FileStore
	Logger      infra.Logger
	Concurrency int
}

// NewApp wires the daemon dependencies.
func NewApp(manager *batch.Manager, cat *catalog.Catalog, store *storage.FileStore, logger infra.Logger, concurrency int) *App {
	if concurrency < 1 {
		concurrency = 1
	}
	return &App{
		Manager:     manager,
		Catalog:     cat,
		Store:       store,
		Logger:      logger,
		Concurrency: concurrency,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}
