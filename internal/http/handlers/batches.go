package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"genvrbatch/internal/batch"
	"genvrbatch/internal/source"
)

// StartBatchRequest is the POST /v1/batches body. Items carry the raw
// parameter mappings; category/subcategory select the model for all of them.
type StartBatchRequest struct {
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory"`
	Concurrency int              `json:"concurrency"`
	Items       []map[string]any `json:"items"`
}

// StartBatch launches a batch and replies with its id. Per-item validation
// problems do not reject the batch; they surface as failed items in the
// snapshot, mirroring how the engine treats every other per-item error.
func (a *App) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req StartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid json body: "+err.Error())
		return
	}
	if req.Category == "" || req.Subcategory == "" {
		a.error(w, http.StatusBadRequest, "category and subcategory are required")
		return
	}
	if len(req.Items) == 0 {
		a.error(w, http.StatusBadRequest, "items must not be empty")
		return
	}
	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = a.Concurrency
	}

	requests := source.Requests(req.Category, req.Subcategory, req.Items)

	// The batch outlives this request; detach its lifetime from the
	// connection while keeping request-scoped values for logging.
	id := a.Manager.Start(context.WithoutCancel(r.Context()), requests, concurrency)
	a.json(w, http.StatusAccepted, map[string]any{
		"id":    id,
		"total": len(requests),
	})
}

// GetBatch serves a progress snapshot.
func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	snapshot, err := a.Manager.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		a.batchError(w, err)
		return
	}
	a.json(w, http.StatusOK, snapshot)
}

// CancelBatch sets the batch's cancellation token.
func (a *App) CancelBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Manager.Cancel(id); err != nil {
		a.batchError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"id": id, "status": "cancelling"})
}

// ExportBatch writes the completed batch report through the file store.
func (a *App) ExportBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key, err := a.Manager.Export(r.Context(), id, a.Store)
	if err != nil {
		a.batchError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{
		"id":   id,
		"key":  key,
		"path": a.Store.Path(key),
	})
}

func (a *App) batchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, batch.ErrBatchNotFound):
		a.error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, batch.ErrBatchRunning):
		a.error(w, http.StatusConflict, err.Error())
	default:
		a.Logger.Error().Err(err).Msg("batch handler failed")
		a.error(w, http.StatusInternalServerError, err.Error())
	}
}
