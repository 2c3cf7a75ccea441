// Package sqlitestore implements rowstore.Store on top of database/sql.
// it is the backend used by tests and local CLI runs; production talks to
// supabase through the sibling package.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"a11yhood-backend/lib/rowstore"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) Store {
	return Store{db: db}
}

func (s Store) Table(name string) rowstore.Query {
	return &query{db: s.db, table: name}
}

type queryKind int

const (
	kindSelect queryKind = iota
	kindInsert
	kindUpdate
	kindDelete
)

type predicate struct {
	column string
	op     string
	values []any
}

type query struct {
	db    *sql.DB
	table string

	kind    queryKind
	columns []string
	rows    []rowstore.Row
	patch   rowstore.Row

	preds     []predicate
	orderBy   string
	orderDesc bool
	limit     int
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
	q.preds = append(q.preds, predicate{column: column, op: "=", values: []any{value}})
	return q
}

func (q *query) In(column string, values ...any) rowstore.Query {
	q.preds = append(q.preds, predicate{column: column, op: "in", values: values})
	return q
}

func (q *query) ILike(column string, pattern string) rowstore.Query {
	// sqlite LIKE is already case-insensitive for ascii
	q.preds = append(q.preds, predicate{column: column, op: "like", values: []any{pattern}})
	return q
}

func (q *query) Order(column string, desc bool) rowstore.Query {
	q.orderBy = column
	q.orderDesc = desc
	return q
}

func (q *query) Limit(n int) rowstore.Query {
	q.limit = n
	return q
}

func (q *query) Execute(ctx context.Context) (rowstore.Result, error) {
	switch q.kind {
	case kindSelect:
		return q.executeSelect(ctx)
	case kindInsert:
		return q.executeInsert(ctx)
	case kindUpdate:
		return q.executeUpdate(ctx)
	case kindDelete:
		return q.executeDelete(ctx)
	}
	return rowstore.Result{}, fmt.Errorf("no statement built for table %q", q.table)
}

// encodeValue maps Go values onto what a sqlite column can hold. sequences
// and maps become JSON text, which ProductFromRow on the other side knows to
// decode.
func encodeValue(v any) any {
	switch value := v.(type) {
	case nil, string, int, int64, float64, bool, []byte:
		return value
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case []string, []any, map[string]any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	default:
		return fmt.Sprint(value)
	}
}

func (q *query) whereClause(args *[]any) string {
	if len(q.preds) == 0 {
		return ""
	}
	var clauses []string
	for _, p := range q.preds {
		switch p.op {
		case "in":
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(p.values)), ",")
			clauses = append(clauses, fmt.Sprintf("%q IN (%s)", p.column, placeholders))
			for _, v := range p.values {
				*args = append(*args, encodeValue(v))
			}
		case "like":
			clauses = append(clauses, fmt.Sprintf("%q LIKE ?", p.column))
			*args = append(*args, encodeValue(p.values[0]))
		default:
			clauses = append(clauses, fmt.Sprintf("%q = ?", p.column))
			*args = append(*args, encodeValue(p.values[0]))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (q *query) executeSelect(ctx context.Context) (rowstore.Result, error) {
	cols := "*"
	if len(q.columns) > 0 && !(len(q.columns) == 1 && q.columns[0] == "*") {
		quoted := make([]string, len(q.columns))
		for i, c := range q.columns {
			quoted[i] = fmt.Sprintf("%q", c)
		}
		cols = strings.Join(quoted, ", ")
	}

	var args []any
	stmt := fmt.Sprintf("SELECT %s FROM %q", cols, q.table) + q.whereClause(&args)
	if q.orderBy != "" {
		direction := "ASC"
		if q.orderDesc {
			direction = "DESC"
		}
		stmt += fmt.Sprintf(" ORDER BY %q %s", q.orderBy, direction)
	}
	if q.limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", q.limit)
	}

	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return rowstore.Result{}, err
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return rowstore.Result{}, err
	}

	data := []rowstore.Row{}
	for rows.Next() {
		values := make([]any, len(columnNames))
		pointers := make([]any, len(columnNames))
		for i := range values {
			pointers[i] = &values[i]
		}
		err := rows.Scan(pointers...)
		if err != nil {
			return rowstore.Result{}, err
		}

		row := rowstore.Row{}
		for i, name := range columnNames {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		data = append(data, row)
	}
	return rowstore.Result{Data: data}, rows.Err()
}

func (q *query) executeInsert(ctx context.Context) (rowstore.Result, error) {
	if len(q.rows) == 0 {
		return rowstore.Result{Data: []rowstore.Row{}}, nil
	}

	// the column set comes from the first row so multi-row inserts must be
	// shaped uniformly
	var columns []string
	for c := range q.rows[0] {
		columns = append(columns, c)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	var placeholders []string
	var args []any
	for _, r := range q.rows {
		placeholders = append(placeholders, rowPlaceholder)
		for _, c := range columns {
			args = append(args, encodeValue(r[c]))
		}
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %q (%s) VALUES %s",
		q.table,
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	_, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return rowstore.Result{}, err
	}
	return rowstore.Result{Data: []rowstore.Row{}}, nil
}

func (q *query) executeUpdate(ctx context.Context) (rowstore.Result, error) {
	if len(q.patch) == 0 {
		return rowstore.Result{Data: []rowstore.Row{}}, nil
	}

	var sets []string
	var args []any
	for c, v := range q.patch {
		sets = append(sets, fmt.Sprintf("%q = ?", c))
		args = append(args, encodeValue(v))
	}

	stmt := fmt.Sprintf("UPDATE %q SET %s", q.table, strings.Join(sets, ", ")) + q.whereClause(&args)
	_, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return rowstore.Result{}, err
	}
	return rowstore.Result{Data: []rowstore.Row{}}, nil
}

func (q *query) executeDelete(ctx context.Context) (rowstore.Result, error) {
	var args []any
	stmt := fmt.Sprintf("DELETE FROM %q", q.table) + q.whereClause(&args)
	_, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return rowstore.Result{}, err
	}
	return rowstore.Result{Data: []rowstore.Row{}}, nil
}
