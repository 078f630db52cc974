package views

import "risk-console/pkg/i18n"

// MaxPageLinks bounds the numbered links shown at once.
const MaxPageLinks = 5

// Window returns the page numbers to show around current: all pages when
// there are at most five, otherwise five consecutive pages kept inside
// [1, last] and centered on current where possible.
func Window(current, last int) []int {
	if last < 1 {
		return nil
	}
	current = min(max(current, 1), last)
	n := min(MaxPageLinks, last)
	start := 1
	switch {
	case last <= MaxPageLinks, current <= 3:
		start = 1
	case current >= last-2:
		start = last - 4
	default:
		start = current - 2
	}
	pages := make([]int, n)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}

// PageItem is one numbered link.
type PageItem struct {
	Number int
	URL    string
	Active bool
}

// Pagination is the rendered pager of a list.
type Pagination struct {
	Current int
	Last    int
	Total   int
	Showing int
	Items   []PageItem
	PrevURL string
	NextURL string
}

// NewPagination builds a pager; urlFor links to a page number.
func NewPagination(current, last, total, showing int, urlFor func(int) string) Pagination {
	if last < 1 {
		last = 1
	}
	current = min(max(current, 1), last)
	p := Pagination{Current: current, Last: last, Total: total, Showing: showing}
	for _, n := range Window(current, last) {
		p.Items = append(p.Items, PageItem{Number: n, URL: urlFor(n), Active: n == current})
	}
	if current > 1 {
		p.PrevURL = urlFor(current - 1)
	}
	if current < last {
		p.NextURL = urlFor(current + 1)
	}
	return p
}

// Visible is false for an empty list.
func (p Pagination) Visible() bool { return p.Total > 0 }

func (p Pagination) HasPrev() bool { return p.PrevURL != "" }
func (p Pagination) HasNext() bool { return p.NextURL != "" }

// Label is "Página X de Y".
func (p Pagination) Label() string {
	return i18n.Getf("PageOf", p.Current, p.Last)
}

// Paginate slices an in-memory list, as the trades tab does.
func Paginate[T any](items []T, page, perPage int) (slice []T, current, last int) {
	if perPage < 1 {
		perPage = 10
	}
	last = max(1, (len(items)+perPage-1)/perPage)
	current = min(max(page, 1), last)
	from := (current - 1) * perPage
	to := min(from+perPage, len(items))
	if from >= len(items) {
		return nil, current, last
	}
	return items[from:to], current, last
}
