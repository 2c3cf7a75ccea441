// Package ravelry scrapes knitting and crochet patterns from the Ravelry
// API. search terms for this source are pattern-attribute permalinks (for
// example "one-handed"), passed through the pa search filter.
package ravelry

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
	SourceName  = "Ravelry"
	PlatformTag = "ravelry"

	apiBaseUrl       = "https://api.ravelry.com"
	throttleInterval = time.Second * 2
	searchPageSize   = 100
)

var permalinkRegex = regexp.MustCompile(`/patterns/library/([\w-]+)`)

type Scraper struct {
	deps     scrapers.Deps
	http     *resty.Client
	throttle *scrapers.Throttle
}

func New(deps scrapers.Deps) scrapers.Adapter {
	return &Scraper{
		deps: deps,
		http: scrapers.NewHTTPClient(scrapers.ClientOptions{
			BaseUrl: apiBaseUrl,
			Headers: map[string]string{
				"Authorization": "Bearer " + deps.AccessToken,
			},
			TracerName: "scrapers/ravelry",
		}),
		throttle: scrapers.NewThrottle(throttleInterval),
	}
}

func (s *Scraper) SourceName() string {
	return SourceName
}

func (s *Scraper) SupportsUrl(url string) bool {
	return strings.Contains(strings.ToLower(url), "ravelry.com")
}

func (s *Scraper) Close() {
	s.http.GetClient().CloseIdleConnections()
}

func ExtractPermalink(url string) string {
	groups := permalinkRegex.FindStringSubmatch(url)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

// CanonicalUrl is the dedup key for a pattern, built from its permalink.
func CanonicalUrl(permalink string) string {
	return fmt.Sprintf("https://www.ravelry.com/patterns/library/%s", permalink)
}

type pattern struct {
	Id         int64  `json:"id"`
	Name       string `json:"name"`
	Permalink  string `json:"permalink"`
	Notes      string `json:"notes"`
	Designer   *named `json:"designer"`
	FirstPhoto *photo `json:"first_photo"`
	Craft      *named `json:"craft"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"pattern_categories"`
	Free      bool   `json:"free"`
	UpdatedAt string `json:"updated_at"`
}

type photo struct {
	MediumUrl string `json:"medium_url"`
	SmallUrl  string `json:"small_url"`
}

type named struct {
	Name string `json:"name"`
}

type searchResponse struct {
	Patterns []pattern `json:"patterns"`
}

type patternResponse struct {
	Pattern *pattern `json:"pattern"`
}

func (s *Scraper) ScrapeUrl(ctx context.Context, url string) (*catalog.Product, error) {
	permalink := ExtractPermalink(url)
	if permalink == "" {
		return nil, nil
	}

	// the single-pattern endpoint takes numeric ids only, a permalink goes
	// through search and is matched exactly in the results
	patterns, err := s.search(ctx, map[string]string{"query": permalink})
	if err != nil {
		return nil, err
	}
	for _, pat := range patterns {
		if pat.Permalink == permalink {
			p := s.product(pat)
			return &p, nil
		}
	}
	slog.WarnContext(ctx, "pattern not found", "permalink", permalink)
	return nil, nil
}

func (s *Scraper) search(ctx context.Context, params map[string]string) ([]pattern, error) {
	err := s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	req := s.http.R().
		SetContext(ctx).
		SetQueryParam("page_size", strconv.Itoa(searchPageSize))
	for k, v := range params {
		req.SetQueryParam(k, v)
	}

	res, err := req.Get("/patterns/search.json")
	if err != nil {
		return nil, fmt.Errorf("pattern search: %w", err)
	}
	if res.StatusCode() == 401 || res.StatusCode() == 403 {
		return nil, fmt.Errorf("pattern search: status %d, check the ravelry access token", res.StatusCode())
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("pattern search: status %d", res.StatusCode())
	}

	var parsed searchResponse
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, fmt.Errorf("decode pattern search: %w", err)
	}
	return parsed.Patterns, nil
}

func (s *Scraper) product(pat pattern) catalog.Product {
	var img string
	if pat.FirstPhoto != nil {
		img = pat.FirstPhoto.MediumUrl
		if img == "" {
			img = pat.FirstPhoto.SmallUrl
		}
	}

	var tags []string
	if pat.Craft != nil && pat.Craft.Name != "" {
		tags = append(tags, strings.ToLower(pat.Craft.Name))
	}
	for _, c := range pat.Categories {
		if c.Name != "" {
			tags = append(tags, strings.ToLower(c.Name))
		}
	}

	var lastUpdated *time.Time
	if pat.UpdatedAt != "" {
		// ravelry timestamps look like "2023/06/15 08:30:00 -0400"
		t, err := time.Parse("2006/01/02 15:04:05 -0700", pat.UpdatedAt)
		if err == nil {
			lastUpdated = &t
		}
	}

	var designer string
	if pat.Designer != nil && pat.Designer.Name != "" {
		designer = "By " + pat.Designer.Name
	}

	return catalog.Product{
		Name:              pat.Name,
		Description:       textutil.ComposeSections(designer, pat.Notes),
		Source:            SourceName,
		Url:               CanonicalUrl(pat.Permalink),
		Image:             img,
		Type:              "Pattern",
		ExternalId:        strconv.FormatInt(pat.Id, 10),
		Tags:              tags,
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

func (b bulkSource) Fetch(ctx context.Context, target string) ([]catalog.Product, error) {
	if permalink := ExtractPermalink(target); permalink != "" {
		p, err := b.s.ScrapeUrl(ctx, target)
		if err != nil || p == nil {
			return nil, err
		}
		return []catalog.Product{*p}, nil
	}

	patterns, err := b.s.search(ctx, map[string]string{"pa": target})
	if err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(patterns))
	for _, pat := range patterns {
		if pat.Name == "" || pat.Permalink == "" {
			continue
		}
		products = append(products, b.s.product(pat))
	}
	return products, nil
}

func (s *Scraper) Scrape(ctx context.Context, opts scrapers.Options) scrapers.Report {
	if s.deps.AccessToken == "" {
		return scrapers.Report{
			Source: SourceName,
			Status: scrapers.StatusWarning,
			Message: "ravelry access token not configured, run the oauth flow " +
				"or set it in oauth_configs with platform=" + PlatformTag,
		}
	}
	return scrapers.RunBulk(ctx, s.deps.Store, bulkSource{s}, opts)
}
