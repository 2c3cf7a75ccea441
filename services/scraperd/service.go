// Package scraperd orchestrates scrape runs: it resolves credentials and
// search terms, constructs the right source adapter, runs it, and records the
// outcome in scraping_logs.
package scraperd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/rowstore"
	"a11yhood-backend/lib/scrapers"
	"a11yhood-backend/lib/scrapers/abledata"
	"a11yhood-backend/lib/scrapers/github"
	"a11yhood-backend/lib/scrapers/goat"
	"a11yhood-backend/lib/scrapers/ravelry"
	"a11yhood-backend/lib/scrapers/thingiverse"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("services/scraperd")
var meter = otel.Meter("services/scraperd")

const (
	oauthConfigsTable = "oauth_configs"
	scrapingLogsTable = "scraping_logs"

	// cap on attempted targets when a test-mode request gives no limit
	defaultTestLimit = 5
)

// env fallbacks per platform, consulted only when oauth_configs has no row.
// two github names exist because deployments historically used either.
var envTokenVars = map[string][]string{
	github.PlatformTag:      {"GITHUB_TOKEN", "GITHUB_ACCESS_TOKEN"},
	thingiverse.PlatformTag: {"THINGIVERSE_ACCESS_TOKEN"},
	ravelry.PlatformTag:     {"RAVELRY_ACCESS_TOKEN"},
	goat.PlatformTag:        {"LIBRARYTHING_API_KEY"},
}

type Options struct {
	// optional operator notification on error-status runs
	Notify NotifyConfig
}

type Service struct {
	store    rowstore.Store
	registry *scrapers.Registry
	options  Options

	// lazily built, replaceable in tests
	oauthClient     *resty.Client
	oauthClientOnce sync.Once

	productsFound   metric.Int64Counter
	productsAdded   metric.Int64Counter
	productsUpdated metric.Int64Counter
	runsTotal       metric.Int64Counter
}

// DefaultRegistry wires up every supported source.
func DefaultRegistry() *scrapers.Registry {
	registry := scrapers.NewRegistry()
	registry.Register(github.PlatformTag, github.New)
	registry.Register(thingiverse.PlatformTag, thingiverse.New)
	registry.Register(ravelry.PlatformTag, ravelry.New)
	registry.Register(abledata.PlatformTag, abledata.New)
	registry.Register(goat.PlatformTag, goat.New)
	return registry
}

func NewService(store rowstore.Store, registry *scrapers.Registry, options Options) (*Service, error) {
	s := &Service{
		store:    store,
		registry: registry,
		options:  options,
	}

	var err error
	s.productsFound, err = meter.Int64Counter("scraperd.products_found")
	if err != nil {
		return nil, err
	}
	s.productsAdded, err = meter.Int64Counter("scraperd.products_added")
	if err != nil {
		return nil, err
	}
	s.productsUpdated, err = meter.Int64Counter("scraperd.products_updated")
	if err != nil {
		return nil, err
	}
	s.runsTotal, err = meter.Int64Counter("scraperd.runs")
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) Sources() []string {
	return s.registry.Sources()
}

type RunRequest struct {
	// platform tag, e.g. "github"
	Source    string
	TestMode  bool
	TestLimit int
	// explicit targets, overriding persisted search terms
	Urls []string
}

// Run executes one full scrape for a source and records it in scraping_logs.
// the returned error covers setup failures only (unknown source, broken
// store); a run that degraded or errored mid-flight comes back as a report
// with the corresponding status.
func (s *Service) Run(ctx context.Context, req RunRequest) (scrapers.Report, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", req.Source),
		attribute.Bool("test_mode", req.TestMode),
	)

	adapter, err := s.newAdapter(ctx, req.Source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct adapter")
		return scrapers.Report{}, err
	}
	defer adapter.Close()

	limit := req.TestLimit
	if req.TestMode && limit <= 0 {
		limit = defaultTestLimit
	}

	report := adapter.Scrape(ctx, scrapers.Options{
		TestMode:  req.TestMode,
		TestLimit: limit,
		Urls:      req.Urls,
	})

	s.recordRun(ctx, report)
	if report.Status == scrapers.StatusError {
		s.notifyFailure(ctx, report)
	}

	slog.InfoContext(ctx, "scrape run finished",
		"source", report.Source,
		"status", report.Status,
		"found", report.ProductsFound,
		"added", report.ProductsAdded,
		"updated", report.ProductsUpdated)
	return report, nil
}

// RouteUrl finds the platform tag whose adapter recognizes the url.
func (s *Service) RouteUrl(url string) (string, error) {
	for _, tag := range s.registry.Sources() {
		adapter, err := s.registry.New(tag, scrapers.Deps{})
		if err != nil {
			return "", err
		}
		supported := adapter.SupportsUrl(url)
		adapter.Close()
		if supported {
			return tag, nil
		}
	}
	return "", fmt.Errorf("no scraper recognizes %q", url)
}

// ScrapeOne routes a single url to its adapter, scrapes it and persists the
// result. a nil product with a nil error means the url was recognized but
// nothing resolvable lives behind it.
func (s *Service) ScrapeOne(ctx context.Context, url string) (*catalog.Product, error) {
	ctx, span := tracer.Start(ctx, "ScrapeOne")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	tag, err := s.RouteUrl(url)
	if err != nil {
		return nil, err
	}

	adapter, err := s.newAdapter(ctx, tag)
	if err != nil {
		return nil, err
	}
	defer adapter.Close()

	p, err := adapter.ScrapeUrl(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	created, err := scrapers.Upsert(ctx, s.store, *p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, err
	}
	slog.InfoContext(ctx, "scraped single url",
		"url", url, "source", p.Source, "created", created)
	return p, nil
}

func (s *Service) newAdapter(ctx context.Context, tag string) (scrapers.Adapter, error) {
	token, err := s.AccessToken(ctx, tag)
	if err != nil {
		// a missing or unreadable token row degrades to the env fallback,
		// adapters that require auth report the gap themselves
		slog.WarnContext(ctx, "failed to resolve access token",
			"platform", tag, "err", err)
	}

	terms, err := scrapers.SearchTerms(ctx, s.store, tag)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve search terms",
			"platform", tag, "err", err)
	}

	return s.registry.New(tag, scrapers.Deps{
		Store:       s.store,
		AccessToken: token,
		SearchTerms: terms,
	})
}

// AccessToken resolves the credential for a platform. a persisted
// oauth_configs row wins, environment variables are the fallback.
func (s *Service) AccessToken(ctx context.Context, platform string) (string, error) {
	res, err := s.store.Table(oauthConfigsTable).
		Select("access_token").
		Eq("platform", platform).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return envToken(platform), err
	}
	if len(res.Data) > 0 {
		if token, ok := res.Data[0]["access_token"].(string); ok && token != "" {
			return token, nil
		}
	}
	return envToken(platform), nil
}

func envToken(platform string) string {
	for _, name := range envTokenVars[platform] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// recordRun persists the report. log failures are logged and swallowed, a
// broken audit trail must not fail a completed scrape.
func (s *Service) recordRun(ctx context.Context, report scrapers.Report) {
	attrs := metric.WithAttributes(attribute.String("source", report.Source))
	s.runsTotal.Add(ctx, 1, attrs)
	s.productsFound.Add(ctx, int64(report.ProductsFound), attrs)
	s.productsAdded.Add(ctx, int64(report.ProductsAdded), attrs)
	s.productsUpdated.Add(ctx, int64(report.ProductsUpdated), attrs)

	full, err := json.Marshal(report)
	if err != nil {
		full = nil
	}
	_, err = s.store.Table(scrapingLogsTable).
		Insert(rowstore.Row{
			"id":               uuid.NewString(),
			"source":           report.Source,
			"products_found":   report.ProductsFound,
			"products_added":   report.ProductsAdded,
			"products_updated": report.ProductsUpdated,
			"duration_seconds": report.DurationSeconds,
			"status":           string(report.Status),
			"message":          report.Message,
			"error_message":    report.ErrorMessage,
			"report":           string(full),
			"created_at":       time.Now().UTC().Format(time.RFC3339),
		}).
		Execute(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record scrape run",
			"source", report.Source, "err", err)
	}
}
