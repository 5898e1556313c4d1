package supabase

import (
	"context"
	"net/http"
	"net/url"
)

// Query is a PostgREST request under construction. Build one with From.
type Query struct {
	c      *Client
	table  string
	method string
	params url.Values
	body   any
	// returnRows asks PostgREST to echo the affected rows back.
	returnRows bool
}

// From starts a query against table.
func (c *Client) From(table string) *Query {
	return &Query{
		c:      c,
		table:  table,
		method: http.MethodGet,
		params: url.Values{},
	}
}

// Select sets the column list ("*" for all). On an Insert or Update it also
// asks for the written rows to be returned.
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	q.returnRows = true
	return q
}

// Eq filters on column = value.
func (q *Query) Eq(column, value string) *Query {
	q.params.Add(column, "eq."+value)
	return q
}

// Insert turns the query into an insert of row.
func (q *Query) Insert(row any) *Query {
	q.method = http.MethodPost
	q.body = row
	return q
}

// Update turns the query into a PATCH of the filtered rows.
func (q *Query) Update(values any) *Query {
	q.method = http.MethodPatch
	q.body = values
	return q
}

// Execute runs the query and decodes the JSON array response into dest.
// dest may be nil when no rows are wanted.
func (q *Query) Execute(ctx context.Context, dest any) error {
	cl := call{
		method: q.method,
		path:   "/rest/v1/" + q.table,
		query:  q.params,
		body:   q.body,
	}
	if q.method != http.MethodGet {
		prefer := "return=minimal"
		if q.returnRows {
			prefer = "return=representation"
		}
		cl.header = http.Header{"Prefer": {prefer}}
	}
	return q.c.do(ctx, cl, dest)
}
