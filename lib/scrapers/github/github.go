// Package github scrapes open source accessibility software hosted on
// github.com through the REST v3 API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/scrapers"
	"a11yhood-backend/lib/textutil"

	"github.com/go-resty/resty/v2"
)

const (
	SourceName  = "GitHub"
	PlatformTag = "github"

	apiBaseUrl = "https://api.github.com"
	// authenticated search allows 30 requests/min, 2.5s keeps a margin and
	// stays usable unauthenticated (10/min) across short runs
	throttleInterval = time.Millisecond * 2500
	// search results are paged, one page of 100 per term is plenty for a
	// catalog seeded by curated terms
	searchPageSize = 100
)

var repoUrlRegex = regexp.MustCompile(`github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)

type Scraper struct {
	deps     scrapers.Deps
	http     *resty.Client
	throttle *scrapers.Throttle
}

func New(deps scrapers.Deps) scrapers.Adapter {
	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	// the API works without a token at a much lower rate limit
	if deps.AccessToken != "" {
		headers["Authorization"] = "Bearer " + deps.AccessToken
	}
	return &Scraper{
		deps: deps,
		http: scrapers.NewHTTPClient(scrapers.ClientOptions{
			BaseUrl:    apiBaseUrl,
			Headers:    headers,
			TracerName: "scrapers/github",
		}),
		throttle: scrapers.NewThrottle(throttleInterval),
	}
}

func (s *Scraper) SourceName() string {
	return SourceName
}

func (s *Scraper) SupportsUrl(url string) bool {
	return strings.Contains(strings.ToLower(url), "github.com")
}

func (s *Scraper) Close() {
	s.http.GetClient().CloseIdleConnections()
}

// ParseRepoUrl splits a github url into owner and repo. trailing path
// segments (issues, releases, blob trees) are ignored, they all belong to the
// same repository.
func ParseRepoUrl(url string) (owner, repo string, ok bool) {
	groups := repoUrlRegex.FindStringSubmatch(url)
	if len(groups) < 3 {
		return "", "", false
	}
	repo = strings.TrimSuffix(groups[2], ".git")
	return groups[1], repo, true
}

type repository struct {
	Id          int64    `json:"id"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	HtmlUrl     string   `json:"html_url"`
	Topics      []string `json:"topics"`
	Language    string   `json:"language"`
	Stars       int      `json:"stargazers_count"`
	PushedAt    string   `json:"pushed_at"`
	Owner       struct {
		Login     string `json:"login"`
		AvatarUrl string `json:"avatar_url"`
	} `json:"owner"`
}

type searchResult struct {
	TotalCount int          `json:"total_count"`
	Items      []repository `json:"items"`
}

func (s *Scraper) ScrapeUrl(ctx context.Context, url string) (*catalog.Product, error) {
	owner, repo, ok := ParseRepoUrl(url)
	if !ok {
		return nil, nil
	}

	err := s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/repos/%s/%s", owner, repo))
	if err != nil {
		return nil, fmt.Errorf("fetch repo %s/%s: %w", owner, repo, err)
	}
	if res.StatusCode() == 404 {
		slog.WarnContext(ctx, "repository not found", "owner", owner, "repo", repo)
		return nil, nil
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch repo %s/%s: status %d", owner, repo, res.StatusCode())
	}

	var parsed repository
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, fmt.Errorf("decode repo %s/%s: %w", owner, repo, err)
	}
	if parsed.FullName == "" {
		slog.WarnContext(ctx, "repository payload has no name", "owner", owner, "repo", repo)
		return nil, nil
	}

	p := s.product(parsed)
	return &p, nil
}

func (s *Scraper) search(ctx context.Context, term string) ([]repository, error) {
	err := s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        term,
			"sort":     "stars",
			"order":    "desc",
			"per_page": strconv.Itoa(searchPageSize),
		}).
		Get("/search/repositories")
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	if res.StatusCode() == 403 || res.StatusCode() == 429 {
		return nil, fmt.Errorf("search %q: rate limited (status %d)", term, res.StatusCode())
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("search %q: status %d", term, res.StatusCode())
	}

	var parsed searchResult
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, fmt.Errorf("decode search %q: %w", term, err)
	}
	return parsed.Items, nil
}

func (s *Scraper) product(r repository) catalog.Product {
	var lastUpdated *time.Time
	if r.PushedAt != "" {
		t, err := time.Parse(time.RFC3339, r.PushedAt)
		if err == nil {
			lastUpdated = &t
		}
	}

	var author, language, stars string
	if r.Owner.Login != "" {
		author = "By " + r.Owner.Login
	}
	if r.Language != "" {
		language = "Language: " + r.Language
	}
	if r.Stars > 0 {
		stars = fmt.Sprintf("Stars: %d", r.Stars)
	}

	return catalog.Product{
		Name:              r.FullName,
		Description:       textutil.ComposeSections(author, r.Description, language, stars),
		Source:            SourceName,
		Url:               r.HtmlUrl,
		Image:             r.Owner.AvatarUrl,
		Type:              "Software",
		ExternalId:        strconv.FormatInt(r.Id, 10),
		Tags:              r.Topics,
		ScrapedAt:         time.Now().UTC(),
		SourceLastUpdated: lastUpdated,
	}
}

type bulkSource struct {
	s *Scraper
}

func (b bulkSource) Source() string { return SourceName }

func (b bulkSource) Targets(ctx context.Context) ([]string, error) {
	if len(b.s.deps.SearchTerms) > 0 {
		return b.s.deps.SearchTerms, nil
	}
	return scrapers.SearchTerms(ctx, b.s.deps.Store, PlatformTag)
}

// a github target is a repo url, or a search term when it does not look like
// one. search terms fan out into one product per result.
func (b bulkSource) Fetch(ctx context.Context, target string) ([]catalog.Product, error) {
	if _, _, ok := ParseRepoUrl(target); ok {
		p, err := b.s.ScrapeUrl(ctx, target)
		if err != nil || p == nil {
			return nil, err
		}
		return []catalog.Product{*p}, nil
	}

	repos, err := b.s.search(ctx, target)
	if err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(repos))
	for _, r := range repos {
		if r.HtmlUrl == "" || r.FullName == "" {
			continue
		}
		products = append(products, b.s.product(r))
	}
	return products, nil
}

func (s *Scraper) Scrape(ctx context.Context, opts scrapers.Options) scrapers.Report {
	return scrapers.RunBulk(ctx, s.deps.Store, bulkSource{s}, opts)
}
