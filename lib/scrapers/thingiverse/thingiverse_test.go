package thingiverse

import (
	"context"
	"testing"
	"time"

	"a11yhood-backend/lib/scrapers"
	"a11yhood-backend/lib/testutil"
	scraperdb "a11yhood-backend/services/scraperd/db"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const thingJson = `{
	"id": 4734271,
	"name": "One-Handed Bottle Opener",
	"description": "A printable opener usable with one hand.",
	"public_url": "https://www.thingiverse.com/thing:4734271",
	"thumbnail": "https://cdn.thingiverse.com/thumb.jpg",
	"modified": "2023-06-15T08:30:00+00:00",
	"tags": [{"name": "assistive"}, {"name": "one-handed"}]
}`

const searchHitsJson = `{
	"total": 2,
	"hits": [
		{"id": 1, "name": "Adaptive Grip", "public_url": "https://www.thingiverse.com/thing:1"},
		{"id": 2, "name": "Key Turner", "public_url": "https://www.thingiverse.com/thing:2"}
	]
}`

func newTestScraper(t *testing.T, deps scrapers.Deps) *Scraper {
	if deps.AccessToken == "" {
		deps.AccessToken = "token"
	}
	s := New(deps).(*Scraper)
	s.throttle = scrapers.NewThrottle(time.Millisecond)
	httpmock.ActivateNonDefault(s.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestExtractThingId(t *testing.T) {
	require.Equal(t, "4734271", ExtractThingId("https://www.thingiverse.com/thing:4734271"))
	require.Equal(t, "99", ExtractThingId("thing:99"))
	require.Equal(t, "", ExtractThingId("https://www.thingiverse.com/search?q=grip"))
}

func TestScrapeUrl(t *testing.T) {
	s := newTestScraper(t, scrapers.Deps{})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/things/4734271",
		httpmock.NewStringResponder(200, thingJson))

	p, err := s.ScrapeUrl(context.Background(), "https://www.thingiverse.com/thing:4734271")
	require.NoError(t, err)
	require.NotNil(t, p)

	require.Equal(t, "One-Handed Bottle Opener", p.Name)
	require.Equal(t, "Thingiverse", p.Source)
	require.Equal(t, "3D Model", p.Type)
	require.Equal(t, "https://www.thingiverse.com/thing:4734271", p.Url)
	require.Equal(t, "4734271", p.ExternalId)
	require.Equal(t, []string{"assistive", "one-handed"}, p.Tags)
	require.Equal(t, "https://cdn.thingiverse.com/thumb.jpg", p.Image)
	require.NotNil(t, p.SourceLastUpdated)
}

func TestScrapeUrlNotFound(t *testing.T) {
	s := newTestScraper(t, scrapers.Deps{})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/things/1",
		httpmock.NewStringResponder(404, `{"error": "not found"}`))

	p, err := s.ScrapeUrl(context.Background(), "https://www.thingiverse.com/thing:1")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestScrapeBySearchTerms(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "thingiverse-scraper",
		DbSchema: scraperdb.Schema,
	})
	defer cleanup()

	s := newTestScraper(t, scrapers.Deps{
		Store:       res.Store,
		SearchTerms: []string{"assistive"},
	})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/search/assistive",
		httpmock.NewStringResponder(200, searchHitsJson))

	report := s.Scrape(context.Background(), scrapers.Options{})
	require.Equal(t, scrapers.StatusSuccess, report.Status)
	require.Equal(t, 2, report.ProductsFound)
	require.Equal(t, 2, report.ProductsAdded)

	// search hits carry public_url in whatever shape the API felt like, the
	// persisted url is always the canonical thing: form
	rows, err := res.Store.Table("products").Select("url").Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rows.Data, 2)
	for _, row := range rows.Data {
		require.Contains(t, row["url"], "thingiverse.com/thing:")
	}
}

func TestScrapeWithoutToken(t *testing.T) {
	s := New(scrapers.Deps{}).(*Scraper)
	defer s.Close()

	report := s.Scrape(context.Background(), scrapers.Options{})
	require.Equal(t, scrapers.StatusWarning, report.Status)
	require.Contains(t, report.Message, "access token not configured")
}
