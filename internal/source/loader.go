// Package source loads batch parameter sets from CSV, JSON and JSONL files
// and turns them into job requests for a selected model.
package source

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"genvrbatch/internal/domain"
	"genvrbatch/internal/encode"
)

const filePlaceholderPrefix = "[FILE: "

// LoadFile parses the batch file at path into one parameter mapping per item.
// The format is chosen by extension: .csv (header row, one item per record),
// .json (array of objects, or a single object), .jsonl (one object per line).
// String values of the form "[FILE: path]" are expanded to data URIs.
func LoadFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	defer f.Close()

	var items []map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		items, err = parseCSV(f)
	case ".json":
		items, err = parseJSON(f)
	case ".jsonl", ".ndjson":
		items, err = parseJSONL(f)
	default:
		return nil, fmt.Errorf("source: unsupported batch file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("source: batch file contains no items")
	}

	for i, item := range items {
		items[i] = expandPlaceholders(item)
	}
	return items, nil
}

// Requests attaches the model selector to every parameter set.
func Requests(category, subcategory string, items []map[string]any) []domain.JobRequest {
	requests := make([]domain.JobRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, domain.JobRequest{
			Category:    category,
			Subcategory: subcategory,
			Parameters:  item,
		})
	}
	return requests
}

func parseCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("source: csv file is empty")
		}
		return nil, fmt.Errorf("source: read csv header: %w", err)
	}

	var items []map[string]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: read csv record: %w", err)
		}
		item := make(map[string]any, len(header))
		for i, key := range header {
			if i < len(record) {
				item[strings.TrimSpace(key)] = record[i]
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func parseJSON(r io.Reader) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("source: read json: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []map[string]any
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("source: parse json array: %w", err)
		}
		return items, nil
	}
	var item map[string]any
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("source: parse json object: %w", err)
	}
	return []map[string]any{item}, nil
}

func parseJSONL(r io.Reader) ([]map[string]any, error) {
	var items []map[string]any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var item map[string]any
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			return nil, fmt.Errorf("source: parse jsonl line %d: %w", line, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("source: scan jsonl: %w", err)
	}
	return items, nil
}

// expandPlaceholders walks the value tree and replaces "[FILE: path]" strings
// with base64 data URIs. A placeholder whose file cannot be read is left
// untouched, matching the lenient behavior users expect when sketching a
// batch by hand.
func expandPlaceholders(item map[string]any) map[string]any {
	expanded := make(map[string]any, len(item))
	for k, v := range item {
		expanded[k] = expandValue(v)
	}
	return expanded
}

func expandValue(value any) any {
	switch v := value.(type) {
	case string:
		if strings.HasPrefix(v, filePlaceholderPrefix) && strings.HasSuffix(v, "]") {
			path := strings.TrimSpace(v[len(filePlaceholderPrefix) : len(v)-1])
			if uri, err := encode.FileToDataURI(path); err == nil {
				return uri
			}
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = expandValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = expandValue(item)
		}
		return out
	default:
		return value
	}
}
