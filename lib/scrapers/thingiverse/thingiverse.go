// Package thingiverse scrapes 3D printable assistive designs from the
// Thingiverse REST API. every endpoint requires an oauth access token.
package thingiverse

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

	"github.com/go-resty/resty/v2"
)

const (
	SourceName  = "Thingiverse"
	PlatformTag = "thingiverse"

	apiBaseUrl = "https://api.thingiverse.com"
	// the published limit is 300 requests per 5 minutes
	throttleInterval = time.Millisecond * 1500
	searchPageSize   = 50
)

var thingIdRegex = regexp.MustCompile(`thing:(\d+)`)

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
			TracerName: "scrapers/thingiverse",
		}),
		throttle: scrapers.NewThrottle(throttleInterval),
	}
}

func (s *Scraper) SourceName() string {
	return SourceName
}

func (s *Scraper) SupportsUrl(url string) bool {
	return strings.Contains(strings.ToLower(url), "thingiverse.com")
}

func (s *Scraper) Close() {
	s.http.GetClient().CloseIdleConnections()
}

func ExtractThingId(url string) string {
	groups := thingIdRegex.FindStringSubmatch(url)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

// CanonicalUrl is the dedup key for a thing. API payloads carry public_url in
// a few shapes, normalizing to one form here keeps rescrapes from forking
// rows.
func CanonicalUrl(thingId string) string {
	return fmt.Sprintf("https://www.thingiverse.com/thing:%s", thingId)
}

type thing struct {
	Id            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PublicUrl     string `json:"public_url"`
	Thumbnail     string `json:"thumbnail"`
	PreviewImage  string `json:"preview_image"`
	ModifiedAt    string `json:"modified"`
	IsPublished   int    `json:"is_published"`
	Tags          []tag  `json:"tags"`
	DefaultImage  *image `json:"default_image"`
	LikesCount    int    `json:"like_count"`
	CollectsCount int    `json:"collect_count"`
}

type tag struct {
	Name string `json:"name"`
}

type image struct {
	Url string `json:"url"`
}

type searchResult struct {
	Total int     `json:"total"`
	Hits  []thing `json:"hits"`
}

func (s *Scraper) ScrapeUrl(ctx context.Context, url string) (*catalog.Product, error) {
	thingId := ExtractThingId(url)
	if thingId == "" {
		return nil, nil
	}
	return s.fetchThing(ctx, thingId)
}

func (s *Scraper) fetchThing(ctx context.Context, thingId string) (*catalog.Product, error) {
	err := s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		Get("/things/" + thingId)
	if err != nil {
		return nil, fmt.Errorf("fetch thing %s: %w", thingId, err)
	}
	if res.StatusCode() == 404 {
		slog.WarnContext(ctx, "thing not found", "thing_id", thingId)
		return nil, nil
	}
	if res.StatusCode() == 401 {
		return nil, fmt.Errorf("fetch thing %s: unauthorized, check the thingiverse access token", thingId)
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch thing %s: status %d", thingId, res.StatusCode())
	}

	var parsed thing
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, fmt.Errorf("decode thing %s: %w", thingId, err)
	}
	if parsed.Name == "" {
		slog.WarnContext(ctx, "thing has no name", "thing_id", thingId)
		return nil, nil
	}

	p := s.product(parsed)
	return &p, nil
}

func (s *Scraper) search(ctx context.Context, term string) ([]thing, error) {
	err := s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"type":     "things",
			"per_page": strconv.Itoa(searchPageSize),
			"sort":     "relevant",
		}).
		Get("/search/" + term)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	if res.StatusCode() == 401 {
		return nil, fmt.Errorf("search %q: unauthorized, check the thingiverse access token", term)
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("search %q: status %d", term, res.StatusCode())
	}

	var parsed searchResult
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, fmt.Errorf("decode search %q: %w", term, err)
	}
	return parsed.Hits, nil
}

func (s *Scraper) product(t thing) catalog.Product {
	id := strconv.FormatInt(t.Id, 10)

	img := t.Thumbnail
	if img == "" {
		img = t.PreviewImage
	}
	if img == "" && t.DefaultImage != nil {
		img = t.DefaultImage.Url
	}

	var tags []string
	for _, tg := range t.Tags {
		if tg.Name != "" {
			tags = append(tags, tg.Name)
		}
	}

	var lastUpdated *time.Time
	if t.ModifiedAt != "" {
		parsed, err := time.Parse(time.RFC3339, t.ModifiedAt)
		if err == nil {
			lastUpdated = &parsed
		}
	}

	return catalog.Product{
		Name:              t.Name,
		Description:       t.Description,
		Source:            SourceName,
		Url:               CanonicalUrl(id),
		Image:             img,
		Type:              "3D Model",
		ExternalId:        id,
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
	if thingId := ExtractThingId(target); thingId != "" {
		p, err := b.s.fetchThing(ctx, thingId)
		if err != nil || p == nil {
			return nil, err
		}
		return []catalog.Product{*p}, nil
	}

	hits, err := b.s.search(ctx, target)
	if err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(hits))
	for _, h := range hits {
		if h.Id == 0 || h.Name == "" {
			continue
		}
		products = append(products, b.s.product(h))
	}
	return products, nil
}

func (s *Scraper) Scrape(ctx context.Context, opts scrapers.Options) scrapers.Report {
	if s.deps.AccessToken == "" {
		return scrapers.Report{
			Source: SourceName,
			Status: scrapers.StatusWarning,
			Message: "thingiverse access token not configured, run the oauth flow " +
				"or set it in oauth_configs with platform=" + PlatformTag,
		}
	}
	return scrapers.RunBulk(ctx, s.deps.Store, bulkSource{s}, opts)
}
