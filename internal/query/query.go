// Package query filters, sorts and paginates a record collection. It holds no
// state and is safe to call concurrently.
package query

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/erazemk/findit/internal/model"
)

// DefaultPageSize is used when a query does not set a page size.
const DefaultPageSize = 6

// Sort orders.
type Sort int

const (
	SortDate Sort = iota
	SortTitle
)

func (s Sort) String() string {
	switch s {
	case SortTitle:
		return "title"
	default:
		return "date"
	}
}

// Query selects a page of records. Zero values match everything.
type Query struct {
	Search   string
	Category string
	Status   string
	Tags     []string
	Location string
	Sort     Sort
	Page     int
	PageSize int
}

// Result is one page of the filtered and sorted collection.
type Result struct {
	Items      []model.Record `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	PageSize   int            `json:"page_size"`
}

// Run applies q to records. The input slice is not modified.
func Run(records []model.Record, q Query) Result {
	m := newMatcher(q)

	matched := make([]model.Record, 0, len(records))
	for i := range records {
		if m.match(&records[i]) {
			matched = append(matched, records[i])
		}
	}

	sortRecords(matched, q.Sort)

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	totalPages := len(matched) / size
	if len(matched)%size != 0 {
		totalPages++
	}
	page := Clamp(q.Page, totalPages)

	start := min((page-1)*size, len(matched))
	end := min(page*size, len(matched))

	return Result{
		Items:      matched[start:end],
		Total:      len(matched),
		Page:       page,
		TotalPages: totalPages,
		PageSize:   size,
	}
}

// Clamp returns page limited to [1, max(1, totalPages)].
func Clamp(page, totalPages int) int {
	return max(1, min(page, max(1, totalPages)))
}

type matcher struct {
	q        Query
	fold     cases.Caser
	search   string
	location string
}

func newMatcher(q Query) *matcher {
	m := &matcher{q: q, fold: cases.Fold()}
	m.search = m.fold.String(strings.TrimSpace(q.Search))
	m.location = m.fold.String(strings.TrimSpace(q.Location))
	return m
}

func (m *matcher) match(r *model.Record) bool {
	if m.search != "" &&
		!strings.Contains(m.fold.String(r.Description), m.search) &&
		!strings.Contains(m.fold.String(r.Title), m.search) {
		return false
	}
	if m.q.Category != "" && r.Category() != m.q.Category {
		return false
	}
	if m.q.Status != "" && r.Status != m.q.Status {
		return false
	}
	if len(m.q.Tags) > 0 && !slices.ContainsFunc(m.q.Tags, r.HasTag) {
		return false
	}
	if m.location != "" && !strings.Contains(m.fold.String(r.Location), m.location) {
		return false
	}
	return true
}

func sortRecords(records []model.Record, s Sort) {
	switch s {
	case SortTitle:
		col := collate.New(language.Und)
		slices.SortStableFunc(records, func(a, b model.Record) int {
			return col.CompareString(sortTitle(&a), sortTitle(&b))
		})
	default:
		slices.SortStableFunc(records, func(a, b model.Record) int {
			return b.Date().Compare(a.Date())
		})
	}
}

func sortTitle(r *model.Record) string {
	if r.Title != "" {
		return r.Title
	}
	return r.Description
}
