package github

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

const repoJson = `{
	"id": 123456,
	"full_name": "nvaccess/nvda",
	"description": "NVDA, the free and open source Screen Reader for Microsoft Windows",
	"html_url": "https://github.com/nvaccess/nvda",
	"topics": ["screen-reader", "accessibility"],
	"language": "Python",
	"stargazers_count": 2000,
	"pushed_at": "2024-03-01T12:00:00Z",
	"owner": {"login": "nvaccess", "avatar_url": "https://avatars.githubusercontent.com/u/1.png"}
}`

const searchJson = `{
	"total_count": 2,
	"items": [
		{
			"id": 1,
			"full_name": "org/reader-one",
			"html_url": "https://github.com/org/reader-one",
			"description": "first",
			"owner": {"avatar_url": ""}
		},
		{
			"id": 2,
			"full_name": "org/reader-two",
			"html_url": "https://github.com/org/reader-two",
			"description": "second",
			"owner": {"avatar_url": ""}
		}
	]
}`

func newTestScraper(t *testing.T, deps scrapers.Deps) *Scraper {
	s := New(deps).(*Scraper)
	s.throttle = scrapers.NewThrottle(time.Millisecond)
	httpmock.ActivateNonDefault(s.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return s
}

func TestParseRepoUrl(t *testing.T) {
	cases := []struct {
		url         string
		owner, repo string
		ok          bool
	}{
		{"https://github.com/nvaccess/nvda", "nvaccess", "nvda", true},
		{"https://github.com/nvaccess/nvda/issues/42", "nvaccess", "nvda", true},
		{"git://github.com/owner/project.git", "owner", "project", true},
		{"https://github.com/onlyowner", "", "", false},
		{"https://gitlab.com/a/b", "", "", false},
	}
	for _, c := range cases {
		owner, repo, ok := ParseRepoUrl(c.url)
		require.Equal(t, c.ok, ok, c.url)
		require.Equal(t, c.owner, owner, c.url)
		require.Equal(t, c.repo, repo, c.url)
	}
}

func TestScrapeUrl(t *testing.T) {
	s := newTestScraper(t, scrapers.Deps{AccessToken: "token"})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/repos/nvaccess/nvda",
		httpmock.NewStringResponder(200, repoJson))

	p, err := s.ScrapeUrl(context.Background(), "https://github.com/nvaccess/nvda")
	require.NoError(t, err)
	require.NotNil(t, p)

	require.Equal(t, "nvaccess/nvda", p.Name)
	require.Equal(t, "By nvaccess\n\n"+
		"NVDA, the free and open source Screen Reader for Microsoft Windows\n\n"+
		"Language: Python\n\nStars: 2000", p.Description)
	require.Equal(t, "GitHub", p.Source)
	require.Equal(t, "Software", p.Type)
	require.Equal(t, "https://github.com/nvaccess/nvda", p.Url)
	require.Equal(t, "123456", p.ExternalId)
	require.Equal(t, []string{"screen-reader", "accessibility"}, p.Tags)
	require.Equal(t, "https://avatars.githubusercontent.com/u/1.png", p.Image)
	require.NotNil(t, p.SourceLastUpdated)
	require.Equal(t, 2024, p.SourceLastUpdated.Year())
}

func TestScrapeUrlMissingName(t *testing.T) {
	s := newTestScraper(t, scrapers.Deps{})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/repos/org/ghost",
		httpmock.NewStringResponder(200, `{"id": 7, "html_url": "https://github.com/org/ghost"}`))

	p, err := s.ScrapeUrl(context.Background(), "https://github.com/org/ghost")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestScrapeUrlNotFound(t *testing.T) {
	s := newTestScraper(t, scrapers.Deps{})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/repos/gone/gone",
		httpmock.NewStringResponder(404, `{"message": "Not Found"}`))

	p, err := s.ScrapeUrl(context.Background(), "https://github.com/gone/gone")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestScrapeBySearchTerms(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "github-scraper",
		DbSchema: scraperdb.Schema,
	})
	defer cleanup()

	s := newTestScraper(t, scrapers.Deps{
		Store:       res.Store,
		SearchTerms: []string{"screen reader"},
	})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/search/repositories",
		httpmock.NewStringResponder(200, searchJson))

	report := s.Scrape(context.Background(), scrapers.Options{})
	require.Equal(t, scrapers.StatusSuccess, report.Status)
	require.Equal(t, 2, report.ProductsFound)
	require.Equal(t, 2, report.ProductsAdded)
	require.Equal(t, 0, report.ProductsUpdated)

	// rescrape updates in place instead of duplicating
	report = s.Scrape(context.Background(), scrapers.Options{})
	require.Equal(t, 2, report.ProductsFound)
	require.Equal(t, 0, report.ProductsAdded)
	require.Equal(t, 2, report.ProductsUpdated)
}

func TestScrapeRateLimited(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "github-scraper",
		DbSchema: scraperdb.Schema,
	})
	defer cleanup()

	s := newTestScraper(t, scrapers.Deps{
		Store:       res.Store,
		SearchTerms: []string{"screen reader"},
	})
	httpmock.RegisterResponder("GET", apiBaseUrl+"/search/repositories",
		httpmock.NewStringResponder(403, `{"message": "API rate limit exceeded"}`))

	report := s.Scrape(context.Background(), scrapers.Options{})
	require.Equal(t, scrapers.StatusWarning, report.Status)
	require.Zero(t, report.ProductsFound)
	require.Len(t, report.Targets, 1)
	require.Equal(t, scrapers.OutcomeFailed, report.Targets[0].Outcome)
	require.Contains(t, report.Targets[0].Detail, "rate limited")
}
