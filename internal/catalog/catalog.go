// Package catalog mirrors the GenVR model registry: the model list, its
// grouping by category, and the per-model parameter schemas used to validate
// job requests before submission.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"genvrbatch/internal/domain"
	"genvrbatch/internal/genvr"
	"genvrbatch/internal/infra"
)

// schemaFetchLimit bounds concurrent schema downloads during a refresh; the
// registry advertises several hundred models.
const schemaFetchLimit = 8

// Fetcher is the slice of the remote client the catalog needs.
type Fetcher interface {
	Models(ctx context.Context) ([]genvr.Model, error)
	Schema(ctx context.Context, category, subcategory string) (*genvr.Schema, error)
}

// Catalog caches discovery data. Safe for concurrent readers while a refresh
// runs.
type Catalog struct {
	fetcher Fetcher
	logger  infra.Logger

	mu         sync.RWMutex
	models     []genvr.Model
	byCategory map[string][]genvr.Model
	schemas    map[string]*genvr.Schema
}

// New wires a fetcher.
func New(fetcher Fetcher, logger infra.Logger) *Catalog {
	return &Catalog{
		fetcher:    fetcher,
		logger:     logger,
		byCategory: make(map[string][]genvr.Model),
		schemas:    make(map[string]*genvr.Schema),
	}
}

// Refresh reloads the model list and the schema of every advertised model.
// Schemas are fetched concurrently with a bounded group; a single schema
// failure aborts the refresh and leaves the previous cache in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	models, err := c.fetcher.Models(ctx)
	if err != nil {
		return fmt.Errorf("catalog: fetch models: %w", err)
	}

	schemas := make(map[string]*genvr.Schema, len(models))
	var schemasMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(schemaFetchLimit)
	for _, model := range models {
		model := model
		g.Go(func() error {
			schema, err := c.fetcher.Schema(gctx, model.Category, model.Subcategory)
			if err != nil {
				return fmt.Errorf("catalog: fetch schema %s/%s: %w", model.Category, model.Subcategory, err)
			}
			schemasMu.Lock()
			schemas[modelKey(model.Category, model.Subcategory)] = schema
			schemasMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	byCategory := lo.GroupBy(models, func(m genvr.Model) string { return m.Category })

	c.mu.Lock()
	c.models = models
	c.byCategory = byCategory
	c.schemas = schemas
	c.mu.Unlock()

	c.logger.Info().
		Int("models", len(models)).
		Int("categories", len(byCategory)).
		Msg("catalog: refreshed")
	return nil
}

// Models returns the cached model list.
func (c *Catalog) Models() []genvr.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]genvr.Model(nil), c.models...)
}

// Categories returns the sorted category names.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	categories := lo.Keys(c.byCategory)
	sort.Strings(categories)
	return categories
}

// ModelsInCategory returns the models grouped under one category.
func (c *Catalog) ModelsInCategory(category string) []genvr.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]genvr.Model(nil), c.byCategory[category]...)
}

// SchemaFor returns the cached schema for a model, if known.
func (c *Catalog) SchemaFor(category, subcategory string) (*genvr.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.schemas[modelKey(category, subcategory)]
	return schema, ok
}

// ValidateRequest checks a request's parameters against the model's cached
// schema: required parameters must be present, enum parameters must use an
// allowed value. Requests for models without a cached schema pass; the remote
// performs its own validation on submit.
func (c *Catalog) ValidateRequest(req domain.JobRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	schema, ok := c.SchemaFor(req.Category, req.Subcategory)
	if !ok {
		return nil
	}

	for _, param := range schema.Parameters.Required {
		if _, present := req.Parameters[param.Name]; !present {
			return domain.NewJobError(domain.ErrKindValidation,
				fmt.Sprintf("missing required parameter %q", param.Name))
		}
	}
	for _, param := range append(schema.Parameters.Required, schema.Parameters.Optional...) {
		value, present := req.Parameters[param.Name]
		if !present || len(param.AllowedValues) == 0 {
			continue
		}
		if !lo.ContainsBy(param.AllowedValues, func(allowed any) bool {
			return fmt.Sprint(allowed) == fmt.Sprint(value)
		}) {
			return domain.NewJobError(domain.ErrKindValidation,
				fmt.Sprintf("parameter %q: value %v not allowed", param.Name, value))
		}
	}
	return nil
}

func modelKey(category, subcategory string) string {
	return category + "/" + subcategory
}
