package genvr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Model describes one generation model advertised by /api/models.
type Model struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Param describes one schema parameter.
type Param struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Default       any      `json:"default"`
	AllowedValues []any    `json:"allowedValues"`
	Min           *float64 `json:"min"`
	Max           *float64 `json:"max"`
}

// Schema is the parameter contract for one category/subcategory pair.
type Schema struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Parameters  struct {
		Required []Param `json:"required"`
		Optional []Param `json:"optional"`
	} `json:"parameters"`
}

// Models fetches the full model list.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	data, err := c.get(ctx, "/api/models")
	if err != nil {
		return nil, err
	}
	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("genvr: decode models: %w", err)
	}
	return models, nil
}

// Schema fetches the parameter schema for one model.
func (c *Client) Schema(ctx context.Context, category, subcategory string) (*Schema, error) {
	path := fmt.Sprintf("/api/schema/%s/%s", url.PathEscape(category), url.PathEscape(subcategory))
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var schema Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("genvr: decode schema: %w", err)
	}
	return &schema, nil
}
