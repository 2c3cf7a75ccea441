// Package goat scrapes accessibility-related books catalogued by GOAT on
// librarything.com, through the LibraryThing web services XML API.
//
// the API is documented at 1000 requests/day and sits behind cloudflare, so
// bulk access is unreliable: a run where every fetch comes back blocked is an
// expected steady state and produces a warning report, not an error.
package goat

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/scrapers"
	"a11yhood-backend/lib/textutil"

	"github.com/go-resty/resty/v2"
)

const (
	// canonical source tag on persisted products
	SourceName = "GOAT"
	// platform key in scraper_search_terms and oauth_configs
	PlatformTag = "goat"

	apiBaseUrl = "https://www.librarything.com/services/rest/1.1/"
	// 1000/day works out to well under a request a minute; 90s keeps a
	// healthy margin
	throttleInterval = time.Second * 90
)

var workIdRegex = regexp.MustCompile(`/work/(\d+)`)

type Scraper struct {
	deps     scrapers.Deps
	http     *resty.Client
	throttle *scrapers.Throttle
	apiKey   string
}

func New(deps scrapers.Deps) scrapers.Adapter {
	return &Scraper{
		deps: deps,
		http: scrapers.NewHTTPClient(scrapers.ClientOptions{
			Headers: map[string]string{
				"Accept": "application/xml, text/xml",
			},
			BypassBotProtection: true,
			TracerName:          "scrapers/goat",
		}),
		throttle: scrapers.NewThrottle(throttleInterval),
		apiKey:   deps.AccessToken,
	}
}

func (s *Scraper) SourceName() string {
	return SourceName
}

func (s *Scraper) SupportsUrl(url string) bool {
	return strings.Contains(strings.ToLower(url), "librarything.com")
}

func (s *Scraper) Close() {
	s.http.GetClient().CloseIdleConnections()
}

// ExtractWorkId pulls the work-level identifier out of a LibraryThing url.
// edition urls like /work/35356138/book/302275636 resolve to the parent work
// id, which is the dedup key.
func ExtractWorkId(url string) string {
	groups := workIdRegex.FindStringSubmatch(url)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

func (s *Scraper) ScrapeUrl(ctx context.Context, url string) (*catalog.Product, error) {
	workId := ExtractWorkId(url)
	if workId == "" {
		return nil, nil
	}
	work, err := s.fetchWork(ctx, workId)
	if err != nil {
		return nil, err
	}
	if work == nil {
		return nil, nil
	}
	p := s.product(*work)
	return &p, nil
}

type ltResponse struct {
	Error *ltError `xml:"error"`
	Work  *ltWork  `xml:"work"`
}

type ltError struct {
	Message string `xml:"message"`
}

type ltWork struct {
	Id              string   `xml:"id"`
	Title           string   `xml:"title"`
	Author          ltAuthor `xml:"author"`
	Descriptions    []string `xml:"description"`
	Covers          []ltId   `xml:"cover"`
	PopularTags     ltTags   `xml:"populartags"`
	Language        string   `xml:"language"`
	PublicationYear string   `xml:"publicationyear"`
}

type ltAuthor struct {
	Name       string `xml:"name"`
	AuthorName string `xml:"authorname"`
}

type ltId struct {
	Id string `xml:"id"`
}

type ltTags struct {
	Tags []ltTag `xml:"tag"`
}

type ltTag struct {
	// per-tag weight/count attributes exist upstream but only the name is
	// kept, the canonical schema has no per-tag metadata
	Name string `xml:"name"`
}

type work struct {
	Id              string
	Title           string
	Author          string
	Description     string
	ImageUrl        string
	Tags            []string
	Language        string
	PublicationYear string
}

func (s *Scraper) fetchWork(ctx context.Context, workId string) (*work, error) {
	err := s.throttle.Wait(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"method": "librarything.ck.getwork",
			"id":     workId,
			"apikey": s.apiKey,
		}).
		Get(apiBaseUrl)
	if err != nil {
		return nil, fmt.Errorf("fetch work %s: %w", workId, err)
	}
	if res.StatusCode() != 200 {
		// cloudflare challenges come back as non-200 html, treat the work
		// as unresolvable rather than failing the run
		slog.WarnContext(ctx, "librarything returned non-200, likely blocked",
			"work_id", workId, "status", res.StatusCode())
		return nil, nil
	}

	return parseWorkXml(ctx, res.Body(), workId)
}

// parseWorkXml distinguishes three nothing-to-persist shapes: an explicit
// upstream error element, a response missing the work or its title, and
// malformed xml. the first two are skips, the last is a parse failure.
func parseWorkXml(ctx context.Context, body []byte, workId string) (*work, error) {
	var parsed ltResponse
	err := xml.Unmarshal(body, &parsed)
	if err != nil {
		return nil, fmt.Errorf("malformed xml for work %s: %w", workId, err)
	}

	if parsed.Error != nil {
		slog.WarnContext(ctx, "librarything reported an error",
			"work_id", workId, "message", parsed.Error.Message)
		return nil, nil
	}
	if parsed.Work == nil {
		slog.WarnContext(ctx, "no work element in response", "work_id", workId)
		return nil, nil
	}

	title := textutil.NormalizeWhitespace(parsed.Work.Title)
	if title == "" {
		slog.WarnContext(ctx, "work has no title", "work_id", workId)
		return nil, nil
	}

	w := work{
		Id:              workId,
		Title:           title,
		Language:        strings.TrimSpace(parsed.Work.Language),
		PublicationYear: strings.TrimSpace(parsed.Work.PublicationYear),
	}

	w.Author = strings.TrimSpace(parsed.Work.Author.Name)
	if w.Author == "" {
		w.Author = strings.TrimSpace(parsed.Work.Author.AuthorName)
	}

	for _, d := range parsed.Work.Descriptions {
		if strings.TrimSpace(d) != "" {
			w.Description = strings.TrimSpace(d)
			break
		}
	}

	for _, cover := range parsed.Work.Covers {
		if id := strings.TrimSpace(cover.Id); id != "" {
			w.ImageUrl = fmt.Sprintf("https://covers.librarything.com/pics/%sl", id)
			break
		}
	}

	for _, tag := range parsed.Work.PopularTags.Tags {
		if name := strings.TrimSpace(tag.Name); name != "" {
			w.Tags = append(w.Tags, name)
		}
	}

	return &w, nil
}

// product normalizes a parsed work. the url is always the work-level form so
// the dedup key cannot fork across the multiple url shapes that reach the
// same work.
func (s *Scraper) product(w work) catalog.Product {
	var author, published, language string
	if w.Author != "" {
		author = "By " + w.Author
	}
	if w.PublicationYear != "" {
		published = "Published: " + w.PublicationYear
	}
	if w.Language != "" {
		language = "Language: " + w.Language
	}

	return catalog.Product{
		Name:        w.Title,
		Description: textutil.ComposeSections(author, w.Description, published, language),
		Source:      SourceName,
		Url:         fmt.Sprintf("https://www.librarything.com/work/%s", w.Id),
		Image:       w.ImageUrl,
		Type:        "Book",
		ExternalId:  w.Id,
		Tags:        w.Tags,
		ScrapedAt:   time.Now().UTC(),
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

// a GOAT target is either a librarything url or a bare numeric work id.
func (b bulkSource) Fetch(ctx context.Context, target string) ([]catalog.Product, error) {
	workId := strings.TrimSpace(target)
	if strings.HasPrefix(workId, "http") {
		workId = ExtractWorkId(workId)
	}
	if workId == "" {
		return nil, nil
	}

	work, err := b.s.fetchWork(ctx, workId)
	if err != nil {
		return nil, err
	}
	if work == nil {
		return nil, nil
	}
	return []catalog.Product{b.s.product(*work)}, nil
}

func (s *Scraper) Scrape(ctx context.Context, opts scrapers.Options) scrapers.Report {
	if s.apiKey == "" {
		return scrapers.Report{
			Source: SourceName,
			Status: scrapers.StatusWarning,
			Message: "LibraryThing api key not configured, set it in oauth_configs " +
				"with platform=" + PlatformTag,
		}
	}
	return scrapers.RunBulk(ctx, s.deps.Store, bulkSource{s}, opts)
}
