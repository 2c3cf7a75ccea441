package scrapers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/rowstore"
	"a11yhood-backend/lib/textutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/scrapers")

// BulkSource is what an adapter exposes to the shared bulk loop: where its
// targets come from and how one target turns into zero or more normalized
// products. a target is either a full url or a source-native identifier
// (including a search term for sources scraped by search).
type BulkSource interface {
	Source() string
	Targets(ctx context.Context) ([]string, error)
	// Fetch resolves one target. an empty slice with a nil error means the
	// target was recognized but yielded nothing (skip); an error means the
	// fetch or parse failed for this target only.
	Fetch(ctx context.Context, target string) ([]catalog.Product, error)
}

// RunBulk is the bulk-scrape algorithm shared by every adapter. a single
// failing target degrades the run's yield, never aborts it: third-party
// sites are unreliable, inconsistently structured, and sometimes actively
// block automated fetches.
func RunBulk(ctx context.Context, store rowstore.Store, src BulkSource, opts Options) (report Report) {
	ctx, span := tracer.Start(ctx, "RunBulk")
	defer span.End()
	span.SetAttributes(attribute.String("source", src.Source()))

	start := time.Now()
	report = Report{
		Source: src.Source(),
		Status: StatusSuccess,
	}
	defer func() {
		// a panic escaping the per-target isolation is a programming defect,
		// surface it as an error-status report instead of crashing the caller
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprint(r))
			report.Status = StatusError
			report.ErrorMessage = fmt.Sprintf("scraper panic: %v", r)
			report.DurationSeconds = time.Since(start).Seconds()
		}
	}()

	targets := opts.Urls
	if len(targets) == 0 {
		loaded, err := src.Targets(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to load scrape targets",
				"source", src.Source(), "err", err)
		}
		targets = loaded
	}
	if len(targets) == 0 {
		report.Status = StatusWarning
		report.Message = fmt.Sprintf(
			"no targets configured for %s, provide urls explicitly or seed scraper_search_terms",
			src.Source(),
		)
		report.DurationSeconds = time.Since(start).Seconds()
		return report
	}

	slog.InfoContext(ctx, "starting bulk scrape",
		"source", src.Source(), "targets", len(targets), "test_mode", opts.TestMode)

	cancelled := false
	for i, target := range targets {
		if opts.TestMode && i >= opts.TestLimit {
			slog.InfoContext(ctx, "test mode: stopping early",
				"source", src.Source(), "limit", opts.TestLimit)
			break
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		products, err := src.Fetch(ctx, target)
		if err != nil {
			slog.WarnContext(ctx, "target failed",
				"source", src.Source(), "target", target, "err", err)
			report.Targets = append(report.Targets, TargetResult{
				Target: target, Outcome: OutcomeFailed, Detail: textutil.Truncate(err.Error(), 300),
			})
			continue
		}
		if len(products) == 0 {
			slog.DebugContext(ctx, "target yielded nothing",
				"source", src.Source(), "target", target)
			report.Targets = append(report.Targets, TargetResult{
				Target: target, Outcome: OutcomeSkipped,
			})
			continue
		}

		outcome := OutcomeSkipped
		for _, p := range products {
			report.ProductsFound++
			created, err := Upsert(ctx, store, p)
			if err != nil {
				// found still counts, added/updated does not
				slog.ErrorContext(ctx, "failed to persist product",
					"source", src.Source(), "url", p.Url, "err", err)
				continue
			}
			if created {
				report.ProductsAdded++
				outcome = OutcomeAdded
			} else {
				report.ProductsUpdated++
				if outcome != OutcomeAdded {
					outcome = OutcomeUpdated
				}
			}
		}
		report.Targets = append(report.Targets, TargetResult{Target: target, Outcome: outcome})
	}

	report.DurationSeconds = time.Since(start).Seconds()
	switch {
	case cancelled:
		report.Message = "run cancelled before all targets were processed"
		if report.ProductsFound == 0 {
			report.Status = StatusWarning
		}
	case report.ProductsFound == 0:
		report.Status = StatusWarning
		report.Message = fmt.Sprintf(
			"no products could be fetched from %s, the source may be blocking automated access",
			src.Source(),
		)
	default:
		report.Message = fmt.Sprintf("scraped %d products", report.ProductsFound)
	}

	span.SetAttributes(
		attribute.Int("products_found", report.ProductsFound),
		attribute.Int("products_added", report.ProductsAdded),
		attribute.Int("products_updated", report.ProductsUpdated),
	)
	return report
}
