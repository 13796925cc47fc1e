package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseSort maps "date" and "title" to a Sort. An empty string is SortDate.
func ParseSort(s string) (Sort, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "date", "newest":
		return SortDate, nil
	case "title", "name":
		return SortTitle, nil
	default:
		return SortDate, fmt.Errorf("unknown sort %q", s)
	}
}

// FromValues builds a Query from URL query parameters:
// q, category, status, tag (repeatable or comma separated), location, sort,
// page and page_size.
func FromValues(v url.Values) (Query, error) {
	q := Query{
		Search:   v.Get("q"),
		Category: v.Get("category"),
		Status:   v.Get("status"),
		Location: v.Get("location"),
	}

	for _, raw := range v["tag"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Tags = append(q.Tags, t)
			}
		}
	}

	sort, err := ParseSort(v.Get("sort"))
	if err != nil {
		return Query{}, err
	}
	q.Sort = sort

	if q.Page, err = intParam(v, "page"); err != nil {
		return Query{}, err
	}
	if q.PageSize, err = intParam(v, "page_size"); err != nil {
		return Query{}, err
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}

	return q, nil
}

func intParam(v url.Values, name string) (int, error) {
	s := v.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return n, nil
}
