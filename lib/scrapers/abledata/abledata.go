// Package abledata recovers assistive technology listings from archived
// AbleData product pages. the site shut down in 2020, so every fetch goes
// through the Internet Archive: resolve the closest snapshot through the
// wayback availability API, then parse the snapshot html.
package abledata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/htmlutil"
	"a11yhood-backend/lib/scrapers"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	SourceName  = "AbleData"
	PlatformTag = "abledata"

	availabilityUrl = "https://archive.org/wayback/available"
	// archive.org tolerates slow crawlers and nothing else
	throttleInterval = time.Second * 5
)

type Scraper struct {
	deps     scrapers.Deps
	http     *resty.Client
	throttle *scrapers.Throttle
}

func New(deps scrapers.Deps) scrapers.Adapter {
	return &Scraper{
		deps: deps,
		http: scrapers.NewHTTPClient(scrapers.ClientOptions{
			Timeout:    time.Second * 60,
			TracerName: "scrapers/abledata",
		}),
		throttle: scrapers.NewThrottle(throttleInterval),
	}
}

func (s *Scraper) SourceName() string {
	return SourceName
}

func (s *Scraper) SupportsUrl(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, "abledata.acl.gov") ||
		strings.Contains(lower, "abledata.com")
}

func (s *Scraper) Close() {
	s.http.GetClient().CloseIdleConnections()
}

type availability struct {
	ArchivedSnapshots struct {
		Closest *snapshot `json:"closest"`
	} `json:"archived_snapshots"`
}

type snapshot struct {
	Available bool   `json:"available"`
	Url       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// ScrapeUrl resolves an abledata url to its closest archived snapshot and
// parses the product page out of it. the persisted url stays the original
// abledata one, snapshot urls churn as the archive recrawls.
func (s *Scraper) ScrapeUrl(ctx context.Context, pageUrl string) (*catalog.Product, error) {
	if !s.SupportsUrl(pageUrl) {
		return nil, nil
	}

	snap, err := s.resolveSnapshot(ctx, pageUrl)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		slog.WarnContext(ctx, "no archived snapshot", "url", pageUrl)
		return nil, nil
	}

	err = s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.http.R().SetContext(ctx).Get(snap.Url)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s: %w", snap.Url, err)
	}
	if res.StatusCode() != 200 {
		slog.WarnContext(ctx, "snapshot fetch returned non-200",
			"url", snap.Url, "status", res.StatusCode())
		return nil, nil
	}

	p, err := parseProductPage(res.Body(), pageUrl)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	if t, terr := time.Parse("20060102150405", snap.Timestamp); terr == nil {
		p.SourceLastUpdated = &t
	}
	return p, nil
}

func (s *Scraper) resolveSnapshot(ctx context.Context, pageUrl string) (*snapshot, error) {
	err := s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("url", pageUrl).
		Get(availabilityUrl)
	if err != nil {
		return nil, fmt.Errorf("wayback availability for %s: %w", pageUrl, err)
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("wayback availability for %s: status %d", pageUrl, res.StatusCode())
	}

	var parsed availability
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return nil, fmt.Errorf("decode wayback availability for %s: %w", pageUrl, err)
	}

	closest := parsed.ArchivedSnapshots.Closest
	if closest == nil || !closest.Available || closest.Url == "" {
		return nil, nil
	}
	return closest, nil
}

// parseProductPage pulls the product fields out of archived drupal markup.
// nil with a nil error means the snapshot exists but holds no usable product
// (a listing page, a captcha interstitial, a stripped shell).
func parseProductPage(body []byte, pageUrl string) (*catalog.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot html for %s: %w", pageUrl, err)
	}

	name := htmlutil.CleanText(doc.Find("h1.page-title").First().Text())
	if name == "" {
		name = htmlutil.CleanText(doc.Find("h1").First().Text())
	}
	if name == "" || strings.EqualFold(name, "page not found") {
		return nil, nil
	}

	var desc string
	if body := doc.Find("div.field--name-body").First(); len(body.Nodes) > 0 {
		desc = htmlutil.CleanText(htmlutil.GetText(body.Nodes[0]))
	}
	if desc == "" {
		desc, _ = doc.Find(`meta[name="description"]`).Attr("content")
		desc = htmlutil.CleanText(desc)
	}

	img, _ := doc.Find("div.field--name-field-product-image img").First().Attr("src")
	if img == "" {
		img, _ = doc.Find("article img").First().Attr("src")
	}
	img = absoluteUrl(img)

	var tags []string
	doc.Find("div.field--name-field-category a").Each(func(_ int, sel *goquery.Selection) {
		tag := htmlutil.CleanText(sel.Text())
		if tag != "" {
			tags = append(tags, tag)
		}
	})

	return &catalog.Product{
		Name:        name,
		Description: desc,
		Source:      SourceName,
		Url:         pageUrl,
		Image:       img,
		Type:        "Assistive Technology",
		Tags:        tags,
		ScrapedAt:   time.Now().UTC(),
	}, nil
}

// snapshot markup links relative to web.archive.org.
func absoluteUrl(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	base, err := url.Parse("https://web.archive.org/")
	if err != nil {
		return u
	}
	ref, err := url.Parse(u)
	if err != nil {
		return u
	}
	return base.ResolveReference(ref).String()
}

type bulkSource struct {
	s *Scraper
}

func (b bulkSource) Source() string { return SourceName }

// targets for this source are the archived product urls themselves, there is
// no live search endpoint to fan out from.
func (b bulkSource) Targets(ctx context.Context) ([]string, error) {
	if len(b.s.deps.SearchTerms) > 0 {
		return b.s.deps.SearchTerms, nil
	}
	return scrapers.SearchTerms(ctx, b.s.deps.Store, PlatformTag)
}

func (b bulkSource) Fetch(ctx context.Context, target string) ([]catalog.Product, error) {
	p, err := b.s.ScrapeUrl(ctx, target)
	if err != nil || p == nil {
		return nil, err
	}
	return []catalog.Product{*p}, nil
}

func (s *Scraper) Scrape(ctx context.Context, opts scrapers.Options) scrapers.Report {
	return scrapers.RunBulk(ctx, s.deps.Store, bulkSource{s}, opts)
}
