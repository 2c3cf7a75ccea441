package catalog

import (
	"testing"
	"time"

	"a11yhood-backend/lib/rowstore"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	valid := Product{Name: "Screen Reader", Url: "https://example.com/sr", Source: "GitHub"}
	require.NoError(t, valid.Validate())

	for _, p := range []Product{
		{Url: "https://example.com/sr", Source: "GitHub"},
		{Name: "Screen Reader", Source: "GitHub"},
		{Name: "Screen Reader", Url: "https://example.com/sr"},
	} {
		require.Error(t, p.Validate())
	}
}

func TestRowOmitsEmptyOptionals(t *testing.T) {
	scraped := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Product{
		Name:      "Screen Reader",
		Source:    "GitHub",
		Url:       "https://example.com/sr",
		Type:      "Software",
		ScrapedAt: scraped,
	}

	want := rowstore.Row{
		"name":       "Screen Reader",
		"source":     "GitHub",
		"url":        "https://example.com/sr",
		"type":       "Software",
		"scraped_at": "2024-03-01T12:00:00Z",
	}
	if diff := cmp.Diff(want, p.Row()); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestRowRoundTrip(t *testing.T) {
	updated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	p := Product{
		Name:              "Screen Reader",
		Description:       "Reads the screen.",
		Source:            "GitHub",
		Url:               "https://example.com/sr",
		Image:             "https://example.com/sr.png",
		Type:              "Software",
		ExternalId:        "42",
		Tags:              []string{"screen-reader", "accessibility"},
		ScrapedAt:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		SourceLastUpdated: &updated,
	}

	back, err := ProductFromRow(p.Row())
	require.NoError(t, err)
	if diff := cmp.Diff(p, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProductFromRowSqliteShapes(t *testing.T) {
	// the sqlite backend returns tags as JSON text and timestamps as strings
	p, err := ProductFromRow(rowstore.Row{
		"id":         "abc",
		"name":       "Big Button Phone",
		"source":     "AbleData",
		"url":        "https://abledata.acl.gov/product/big-button-phone",
		"tags":       `["telephones","low vision"]`,
		"scraped_at": "2024-03-01T12:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, "abc", p.ID)
	require.Equal(t, []string{"telephones", "low vision"}, p.Tags)
	require.Equal(t, 2024, p.ScrapedAt.Year())
	require.Nil(t, p.SourceLastUpdated)
}

func TestProductFromRowInvalid(t *testing.T) {
	_, err := ProductFromRow(rowstore.Row{"name": "No Url"})
	require.Error(t, err)
}
