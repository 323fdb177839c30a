// Package query translates the dashboard's filter, sort, and paging
// parameters into SQL fragments with positional placeholders. Sortable
// fields come from a fixed allow-list; request values are only ever bound
// as arguments, never spliced into the query text.
package query

import (
	"fmt"
	"strings"

	"github.com/gyeh/claimboard/internal/model"
)

// PageSize is the fixed number of claims per page.
const PageSize = 50

// DefaultSort is the documented fallback ordering.
const DefaultSort = "id"

// Params are the optional filter/sort/page inputs of a claim listing.
type Params struct {
	Search      string
	Status      string
	FlaggedOnly bool
	Sort        string // allow-listed field name, leading '-' for descending
	Page        int    // 1-indexed
}

// sortColumns maps public sort field names to claim columns. Queries alias
// the claim table as "c".
var sortColumns = map[string]string{
	"id":             "c.claim_id",
	"patient_name":   "c.patient_name",
	"billed_amount":  "c.billed_amount_cents",
	"paid_amount":    "c.paid_amount_cents",
	"status":         "c.status",
	"insurer_name":   "c.insurer_name",
	"discharge_date": "c.discharge_date",
}

// likeEscaper quotes the LIKE wildcards in a user-supplied search term so
// the term matches as a literal substring. Backslash is the default
// escape character for LIKE in Postgres.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Query is the rendered SQL form of a Params value.
type Query struct {
	Where   string // leading " WHERE ...", or "" when unfiltered
	OrderBy string // leading " ORDER BY ..."
	Limit   int
	Offset  int
	Args    []any
}

// Build validates the parameters and renders them. An unknown status value
// is a ValidationError; an unknown sort field falls back to the default
// ordering (id ascending) rather than reaching the store.
func (p Params) Build() (*Query, error) {
	q := &Query{Limit: PageSize}
	var clauses []string

	if s := strings.TrimSpace(p.Search); s != "" {
		n := len(q.Args) + 1
		clauses = append(clauses,
			fmt.Sprintf("(c.patient_name ILIKE $%d OR c.insurer_name ILIKE $%d)", n, n))
		q.Args = append(q.Args, "%"+likeEscaper.Replace(s)+"%")
	}
	if p.Status != "" {
		status, err := model.ParseStatus(p.Status)
		if err != nil {
			return nil, &model.ValidationError{Msg: err.Error()}
		}
		clauses = append(clauses, fmt.Sprintf("c.status = $%d", len(q.Args)+1))
		q.Args = append(q.Args, string(status))
	}
	if p.FlaggedOnly {
		clauses = append(clauses, "c.is_flagged")
	}
	if len(clauses) > 0 {
		q.Where = " WHERE " + strings.Join(clauses, " AND ")
	}

	field, desc := p.Sort, false
	if strings.HasPrefix(field, "-") {
		desc = true
		field = field[1:]
	}
	col, ok := sortColumns[field]
	if !ok {
		col, desc = sortColumns[DefaultSort], false
	}
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	if col == sortColumns["id"] {
		q.OrderBy = " ORDER BY " + col + dir
	} else {
		// Ties break on the id so identical inputs always order identically.
		q.OrderBy = " ORDER BY " + col + dir + ", c.claim_id ASC"
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	q.Offset = (page - 1) * PageSize

	return q, nil
}
