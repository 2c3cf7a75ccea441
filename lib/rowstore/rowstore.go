// Package rowstore is the table-oriented persistence abstraction shared by
// the scrapers and the orchestration service. both the sqlite backend (tests,
// local runs) and the supabase backend (production) implement the same query
// surface, so callers never branch on which one they were handed.
//
// the store only guarantees statement-level atomicity: there is no way to
// span an existence check and the following write in one transaction, so two
// concurrent scrape runs racing on the same canonical url can produce a
// duplicate row or a lost update. ingestion is best-effort and tolerates
// this.
package rowstore

import "context"

// Row is one fetched or written record, keyed by column name.
type Row = map[string]any

type Result struct {
	// Data is never nil, an empty query result is an empty slice.
	Data []Row
}

// Query is a single-statement builder. exactly one of Select, Insert, Update
// or Delete should be called before Execute; predicates only apply to
// Select, Update and Delete.
type Query interface {
	Select(columns ...string) Query
	Insert(rows ...Row) Query
	Update(patch Row) Query
	Delete() Query

	Eq(column string, value any) Query
	In(column string, values ...any) Query
	// ILike matches case-insensitively, `%` is the wildcard.
	ILike(column string, pattern string) Query
	Order(column string, desc bool) Query
	Limit(n int) Query

	Execute(ctx context.Context) (Result, error)
}

type Store interface {
	Table(name string) Query
}
