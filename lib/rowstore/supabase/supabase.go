// Package supabase implements rowstore.Store against the supabase REST
// interface (PostgREST). a service-role key gets full table access, which is
// what the scrapers run with on the backend.
package supabase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"a11yhood-backend/lib/rowstore"
	"a11yhood-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

type Options struct {
	// project url, e.g. https://xyzcompany.supabase.co
	Url string `json:"url"`
	// service-role key for backend use
	Key string `json:"key"`
}

type Store struct {
	http *resty.Client
}

func New(opts Options) Store {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.Url, "/") + "/rest/v1")
	client.SetHeader("apikey", opts.Key)
	client.SetHeader("Authorization", "Bearer "+opts.Key)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "rowstore/supabase")

	return Store{http: client}
}

// NewWithClient exists for tests that want to intercept the transport.
func NewWithClient(client *resty.Client) Store {
	return Store{http: client}
}

func (s Store) Table(name string) rowstore.Query {
	return &query{http: s.http, table: name}
}

type queryKind int

const (
	kindSelect queryKind = iota
	kindInsert
	kindUpdate
	kindDelete
)

type query struct {
	http  *resty.Client
	table string

	kind    queryKind
	columns []string
	rows    []rowstore.Row
	patch   rowstore.Row

	filters url.Values
}

func (q *query) addFilter(column, value string) {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, value)
}

func (q *query) Select(columns ...string) rowstore.Query {
	q.kind = kindSelect
	q.columns = columns
	return q
}

func (q *query) Insert(rows ...rowstore.Row) rowstore.Query {
	q.kind = kindInsert
	q.rows = rows
	return q
}

func (q *query) Update(patch rowstore.Row) rowstore.Query {
	q.kind = kindUpdate
	q.patch = patch
	return q
}

func (q *query) Delete() rowstore.Query {
	q.kind = kindDelete
	return q
}

func (q *query) Eq(column string, value any) rowstore.Query {
	q.addFilter(column, fmt.Sprintf("eq.%v", value))
	return q
}

func (q *query) In(column string, values ...any) rowstore.Query {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quoteListValue(fmt.Sprintf("%v", v))
	}
	q.addFilter(column, fmt.Sprintf("in.(%s)", strings.Join(parts, ",")))
	return q
}

// postgrest parses in.(...) as a comma-separated list, so values holding
// reserved characters must be double-quoted with embedded quotes escaped.
func quoteListValue(v string) string {
	if !strings.ContainsAny(v, `,()" `) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

func (q *query) ILike(column string, pattern string) rowstore.Query {
	// postgrest spells the wildcard `*`
	q.addFilter(column, "ilike."+strings.ReplaceAll(pattern, "%", "*"))
	return q
}

func (q *query) Order(column string, desc bool) rowstore.Query {
	direction := "asc"
	if desc {
		direction = "desc"
	}
	q.addFilter("order", fmt.Sprintf("%s.%s", column, direction))
	return q
}

func (q *query) Limit(n int) rowstore.Query {
	q.addFilter("limit", fmt.Sprint(n))
	return q
}

func (q *query) Execute(ctx context.Context) (rowstore.Result, error) {
	data := []rowstore.Row{}

	req := q.http.R().
		SetContext(ctx).
		SetResult(&data)
	for column, values := range q.filters {
		for _, v := range values {
			req.SetQueryParam(column, v)
		}
	}

	var res *resty.Response
	var err error
	switch q.kind {
	case kindSelect:
		cols := "*"
		if len(q.columns) > 0 {
			cols = strings.Join(q.columns, ",")
		}
		req.SetQueryParam("select", cols)
		res, err = req.Get("/" + q.table)
	case kindInsert:
		req.SetHeader("Prefer", "return=representation")
		req.SetBody(q.rows)
		res, err = req.Post("/" + q.table)
	case kindUpdate:
		req.SetHeader("Prefer", "return=representation")
		req.SetBody(q.patch)
		res, err = req.Patch("/" + q.table)
	case kindDelete:
		res, err = req.Delete("/" + q.table)
	default:
		return rowstore.Result{}, fmt.Errorf("no statement built for table %q", q.table)
	}
	if err != nil {
		return rowstore.Result{}, err
	}
	if res.IsError() {
		return rowstore.Result{}, fmt.Errorf(
			"supabase %s %s: status %d: %s",
			res.Request.Method, q.table, res.StatusCode(), snippet(res.String()),
		)
	}

	if data == nil {
		data = []rowstore.Row{}
	}
	return rowstore.Result{Data: data}, nil
}

func snippet(body string) string {
	if len(body) > 200 {
		return body[:200]
	}
	return body
}
