// Package catalog defines the normalized product record every scraper
// produces. field names are stable across all sources so the persistence
// and API layers never branch per source.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"a11yhood-backend/lib/rowstore"
)

type Product struct {
	ID          string
	Name        string
	Description string
	// canonical source tag, e.g. "GOAT", "github"
	Source string
	// canonical dedup key, stable per external item
	Url        string
	Image      string
	Type       string
	ExternalId string
	Tags       []string
	ScrapedAt  time.Time
	// upstream modification time, when the source exposes one
	SourceLastUpdated *time.Time
}

func (p Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product has no name")
	}
	if p.Url == "" {
		return fmt.Errorf("product %q has no url", p.Name)
	}
	if p.Source == "" {
		return fmt.Errorf("product %q has no source", p.Name)
	}
	return nil
}

// Row converts the product into the persisted shape. optional fields are
// omitted when empty so a patch built from this row never nulls out values
// an earlier scrape filled in.
func (p Product) Row() rowstore.Row {
	row := rowstore.Row{
		"name":       p.Name,
		"source":     p.Source,
		"url":        p.Url,
		"type":       p.Type,
		"scraped_at": p.ScrapedAt.UTC().Format(time.RFC3339),
	}
	if p.Description != "" {
		row["description"] = p.Description
	}
	if p.Image != "" {
		row["image"] = p.Image
	}
	if p.ExternalId != "" {
		row["external_id"] = p.ExternalId
	}
	if p.Tags != nil {
		row["tags"] = p.Tags
	}
	if p.SourceLastUpdated != nil {
		row["source_last_updated"] = p.SourceLastUpdated.UTC().Format(time.RFC3339)
	}
	return row
}

func ProductFromRow(row rowstore.Row) (Product, error) {
	p := Product{
		ID:          stringField(row, "id"),
		Name:        stringField(row, "name"),
		Description: stringField(row, "description"),
		Source:      stringField(row, "source"),
		Url:         stringField(row, "url"),
		Image:       stringField(row, "image"),
		Type:        stringField(row, "type"),
		ExternalId:  stringField(row, "external_id"),
		Tags:        tagsField(row["tags"]),
	}
	if t, ok := timeField(row, "scraped_at"); ok {
		p.ScrapedAt = t
	}
	if t, ok := timeField(row, "source_last_updated"); ok {
		p.SourceLastUpdated = &t
	}
	return p, p.Validate()
}

func stringField(row rowstore.Row, name string) string {
	s, _ := row[name].(string)
	return s
}

func timeField(row rowstore.Row, name string) (time.Time, bool) {
	s, ok := row[name].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// tags come back as a real array from supabase but as JSON text from the
// sqlite backend.
func tagsField(v any) []string {
	switch value := v.(type) {
	case []string:
		return value
	case []any:
		tags := make([]string, 0, len(value))
		for _, t := range value {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	case string:
		if value == "" {
			return nil
		}
		var tags []string
		err := json.Unmarshal([]byte(value), &tags)
		if err != nil {
			return nil
		}
		return tags
	}
	return nil
}
