package query

import (
	"fmt"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/findit/internal/model"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ids(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func fixture() []model.Record {
	return []model.Record{
		{ID: "1", Description: "Blue backpack", Location: "Library", Tags: []string{"Keys", "category:General"}, Status: model.StatusFound, CreatedAt: day("2024-01-01")},
		{ID: "2", Description: "Red wallet", Location: "Cafeteria", Tags: []string{"Wallet"}, Status: model.StatusLost, CreatedAt: day("2024-02-01")},
		{ID: "3", Title: "Phone", Description: "Cracked screen", Location: "Main Library", Tags: []string{"Phone", "category:Electronics"}, Status: model.StatusFound, CreatedAt: day("2024-03-01")},
		{ID: "4", Title: "Écharpe", Description: "Wool scarf", Location: "Gym", Tags: []string{"Clothing", "category:Clothing"}, Status: model.StatusClaimed, CreatedAt: day("2024-01-15")},
		{ID: "5", Description: "Keys on a ring", Location: "library hall", Tags: []string{"Keys", "category:General"}, Status: model.StatusFound, CreatedAt: day("2024-02-10")},
	}
}

func TestWalletScenario(t *testing.T) {
	records := []model.Record{
		{ID: "1", Description: "Blue backpack", Location: "Library", Tags: []string{"Keys"}, CreatedAt: day("2024-01-01")},
		{ID: "2", Description: "Red wallet", Location: "Cafeteria", Tags: []string{"Wallet"}, CreatedAt: day("2024-02-01")},
	}

	res := Run(records, Query{Search: "wallet"})
	assert.Equal(t, []string{"2"}, ids(res.Items))
	assert.Equal(t, 1, res.Total)
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"empty query matches all, newest first", Query{}, []string{"3", "5", "2", "4", "1"}},
		{"search is case-insensitive", Query{Search: "BLUE"}, []string{"1"}},
		{"search covers title", Query{Search: "phone"}, []string{"3"}},
		{"search folds unicode case", Query{Search: "ÉCHARPE"}, []string{"4"}},
		{"category exact", Query{Category: "General"}, []string{"5", "1"}},
		{"category is not substring", Query{Category: "Gen"}, []string{}},
		{"status exact", Query{Status: model.StatusLost}, []string{"2"}},
		{"tags are OR", Query{Tags: []string{"Wallet", "Phone"}}, []string{"3", "2"}},
		{"location substring folded", Query{Location: "LIBRARY"}, []string{"3", "5", "1"}},
		{"predicates are AND", Query{Location: "library", Tags: []string{"Keys"}, Search: "ring"}, []string{"5"}},
		{"AND excludes partial match", Query{Status: model.StatusLost, Tags: []string{"Keys"}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Run(fixture(), tt.q)
			assert.Equal(t, tt.want, ids(res.Items))
			assert.Equal(t, len(tt.want), res.Total)
		})
	}
}

func TestFilterSubsetProperty(t *testing.T) {
	records := fixture()
	queries := []Query{
		{Search: "e"},
		{Tags: []string{"Keys", "Clothing"}},
		{Location: "a", Status: model.StatusFound},
		{Category: "General", Search: "k"},
	}

	for _, q := range queries {
		res := Run(records, q)
		for _, r := range res.Items {
			m := newMatcher(q)
			assert.True(t, m.match(&r), "record %s returned but does not match %+v", r.ID, q)
		}
	}
}

func TestSortTitle(t *testing.T) {
	res := Run(fixture(), Query{Sort: SortTitle})
	// Title falls back to description; collation places É with E.
	assert.Equal(t, []string{"1", "4", "5", "3", "2"}, ids(res.Items))
}

func TestSortIsStable(t *testing.T) {
	same := day("2024-05-05")
	records := []model.Record{
		{ID: "a", Description: "x", CreatedAt: same},
		{ID: "b", Description: "x", CreatedAt: same},
		{ID: "c", Description: "x", CreatedAt: same},
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids(Run(records, Query{}).Items))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Run(records, Query{Sort: SortTitle}).Items))
}

func TestRunDoesNotModifyInput(t *testing.T) {
	records := fixture()
	before := ids(records)
	Run(records, Query{Sort: SortTitle})
	assert.Equal(t, before, ids(records))
}

func makeRecords(n int) []model.Record {
	base := day("2024-01-01")
	records := make([]model.Record, n)
	for i := range records {
		records[i] = model.Record{
			ID:          fmt.Sprintf("r%02d", i),
			Description: fmt.Sprintf("item %d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
	}
	return records
}

func TestPaginationConcatenation(t *testing.T) {
	records := makeRecords(17)
	all := Run(records, Query{PageSize: 100})

	for _, size := range []int{1, 4, 6, 17, 20} {
		first := Run(records, Query{PageSize: size})
		var joined []string
		for p := 1; p <= first.TotalPages; p++ {
			res := Run(records, Query{PageSize: size, Page: p})
			require.Equal(t, p, res.Page)
			require.LessOrEqual(t, len(res.Items), size)
			joined = append(joined, ids(res.Items)...)
		}
		assert.Equal(t, ids(all.Items), joined, "page size %d", size)
	}
}

func TestPaginationDefaults(t *testing.T) {
	res := Run(makeRecords(13), Query{})
	assert.Equal(t, DefaultPageSize, res.PageSize)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 1, res.Page)
	assert.Len(t, res.Items, 6)

	last := Run(makeRecords(13), Query{Page: 3})
	assert.Len(t, last.Items, 1)
}

func TestPaginationHugePageSize(t *testing.T) {
	res := Run(makeRecords(2), Query{PageSize: math.MaxInt})
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, 1, res.Page)
	assert.Len(t, res.Items, 2)

	empty := Run(nil, Query{PageSize: math.MaxInt})
	assert.Equal(t, 0, empty.TotalPages)
	assert.Equal(t, 1, empty.Page)
	assert.Empty(t, empty.Items)
}

func TestPaginationClamp(t *testing.T) {
	records := makeRecords(10)

	tests := []struct {
		name     string
		q        Query
		wantPage int
		wantLen  int
	}{
		{"past the end clamps to last page", Query{Page: 9}, 2, 4},
		{"zero clamps to first", Query{Page: 0}, 1, 6},
		{"negative clamps to first", Query{Page: -3}, 1, 6},
		{"filter shrinks pages", Query{Page: 2, Search: "item 3"}, 1, 1},
		{"no matches is page 1 of 0", Query{Page: 5, Search: "nothing"}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Run(records, tt.q)
			assert.Equal(t, tt.wantPage, res.Page)
			assert.Len(t, res.Items, tt.wantLen)
			assert.GreaterOrEqual(t, res.Page, 1)
			assert.LessOrEqual(t, res.Page, max(1, res.TotalPages))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(0, 0))
	assert.Equal(t, 1, Clamp(3, 0))
	assert.Equal(t, 2, Clamp(2, 5))
	assert.Equal(t, 5, Clamp(8, 5))
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, SortDate, s)

	s, err = ParseSort("Title")
	require.NoError(t, err)
	assert.Equal(t, SortTitle, s)
	assert.Equal(t, "title", s.String())

	_, err = ParseSort("random")
	assert.Error(t, err)
}

func TestFromValues(t *testing.T) {
	v := url.Values{
		"q":         {"wallet"},
		"category":  {"Electronics"},
		"status":    {"Found"},
		"tag":       {"Keys, Phone", "Wallet"},
		"location":  {"lib"},
		"sort":      {"title"},
		"page":      {"2"},
		"page_size": {"500"},
	}

	q, err := FromValues(v)
	require.NoError(t, err)
	assert.Equal(t, "wallet", q.Search)
	assert.Equal(t, "Electronics", q.Category)
	assert.Equal(t, "Found", q.Status)
	assert.Equal(t, []string{"Keys", "Phone", "Wallet"}, q.Tags)
	assert.Equal(t, "lib", q.Location)
	assert.Equal(t, SortTitle, q.Sort)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 100, q.PageSize)

	_, err = FromValues(url.Values{"page": {"two"}})
	assert.Error(t, err)
}
