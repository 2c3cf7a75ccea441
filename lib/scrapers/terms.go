package scrapers

import (
	"context"
	"encoding/json"

	"a11yhood-backend/lib/rowstore"
)

const searchTermsTable = "scraper_search_terms"

// SearchTerms loads the persisted targets for a platform. two shapes have
// existed historically: a single row holding a `search_terms` array, and one
// row per `search_term`. both are normalized into one flat list here so
// adapters only ever see a sequence of strings.
func SearchTerms(ctx context.Context, store rowstore.Store, platform string) ([]string, error) {
	res, err := store.Table(searchTermsTable).
		Select("search_terms").
		Eq("platform", platform).
		Limit(1).
		Execute(ctx)
	if err == nil && len(res.Data) > 0 {
		terms := termList(res.Data[0]["search_terms"])
		if len(terms) > 0 {
			return terms, nil
		}
	}

	res, err = store.Table(searchTermsTable).
		Select("search_term").
		Eq("platform", platform).
		Execute(ctx)
	if err != nil {
		return nil, err
	}
	var terms []string
	for _, row := range res.Data {
		if term, ok := row["search_term"].(string); ok && term != "" {
			terms = append(terms, term)
		}
	}
	return terms, nil
}

func termList(v any) []string {
	switch value := v.(type) {
	case []string:
		return value
	case string:
		// the sqlite backend hands arrays back as JSON text
		if value == "" {
			return nil
		}
		var terms []string
		if json.Unmarshal([]byte(value), &terms) != nil {
			return nil
		}
		return terms
	case []any:
		var terms []string
		for _, t := range value {
			if s, ok := t.(string); ok && s != "" {
				terms = append(terms, s)
			}
		}
		return terms
	}
	return nil
}
