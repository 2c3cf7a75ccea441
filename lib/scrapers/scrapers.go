// Package scrapers holds the contract every source adapter implements plus
// the shared infrastructure they are built from: request throttling, the
// exists-then-create-or-update flow against the row store, and the generic
// bulk-scrape loop.
package scrapers

import (
	"context"
	"fmt"
	"sort"

	"a11yhood-backend/lib/catalog"
	"a11yhood-backend/lib/rowstore"
)

// Adapter is the capability set of one source scraper. SupportsUrl must be a
// pure predicate (no network), it is how an arbitrary url gets routed to the
// right adapter.
type Adapter interface {
	SourceName() string
	SupportsUrl(url string) bool
	// ScrapeUrl fetches and normalizes a single item. a nil product with a
	// nil error means the url was recognized but is not resolvable (deleted
	// upstream, blocked, missing required fields); an error means transport
	// or parse failure.
	ScrapeUrl(ctx context.Context, url string) (*catalog.Product, error)
	Scrape(ctx context.Context, opts Options) Report
	Close()
}

type Options struct {
	TestMode  bool
	TestLimit int
	// explicit targets, take precedence over persisted search terms
	Urls []string
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// TargetResult records what happened to one target, so failure handling is
// visible as data in the report instead of being buried in control flow.
type TargetResult struct {
	Target  string  `json:"target"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

type Report struct {
	Source          string         `json:"source"`
	ProductsFound   int            `json:"products_found"`
	ProductsAdded   int            `json:"products_added"`
	ProductsUpdated int            `json:"products_updated"`
	DurationSeconds float64        `json:"duration_seconds"`
	Status          Status         `json:"status"`
	Message         string         `json:"message,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	Targets         []TargetResult `json:"targets,omitempty"`
}

// Deps is everything the orchestration layer resolves before constructing an
// adapter.
type Deps struct {
	Store rowstore.Store
	// oauth access token or api key, sources that need none ignore it
	AccessToken string
	// pre-resolved search terms, adapters fall back to querying
	// scraper_search_terms themselves when empty
	SearchTerms []string
}

type Constructor func(deps Deps) Adapter

// Registry maps source tags to adapter constructors. the set of sources is
// closed, dispatch goes through here instead of ad hoc conditionals.
type Registry struct {
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

func (r *Registry) Register(tag string, c Constructor) {
	r.constructors[tag] = c
}

func (r *Registry) New(tag string, deps Deps) (Adapter, error) {
	c, ok := r.constructors[tag]
	if !ok {
		return nil, fmt.Errorf("unknown scraper source %q", tag)
	}
	return c(deps), nil
}

func (r *Registry) Sources() []string {
	tags := make([]string, 0, len(r.constructors))
	for tag := range r.constructors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
