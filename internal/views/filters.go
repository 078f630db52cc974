// Package views turns backend data and request parameters into the values
// the console templates render: filters, pagination, stats and labels.
package views

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"risk-console/internal/backend"
	"risk-console/internal/models"
	"risk-console/pkg/config"
)

// Status filter values shared by the accounts and rules pages.
const (
	StatusAll      = "all"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

func parseStatus(s string) string {
	switch s = strings.TrimSpace(s); s {
	case StatusActive, StatusInactive:
		return s
	}
	return StatusAll
}

func parsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func pageURL(path string, v url.Values, page int) string {
	v = cloneValues(v)
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	} else {
		v.Del("page")
	}
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vs := range v {
		for _, s := range vs {
			if s != "" {
				out.Add(k, s)
			}
		}
	}
	return out
}

// AccountFilters is the filter bar of /accounts.
type AccountFilters struct {
	Search string
	Status string
	Page   int
}

func ParseAccountFilters(v url.Values) AccountFilters {
	return AccountFilters{
		Search: strings.TrimSpace(v.Get("search")),
		Status: parseStatus(v.Get("status")),
		Page:   parsePage(v.Get("page")),
	}
}

// Query builds the server-side filtered request.
func (f AccountFilters) Query(perPage int) backend.AccountQuery {
	q := backend.AccountQuery{Page: f.Page, PerPage: perPage, Search: f.Search}
	if f.Status != StatusAll {
		q.Status = f.Status
	}
	return q
}

func (f AccountFilters) HasActive() bool {
	return f.Search != "" || f.Status != StatusAll
}

func (f AccountFilters) values() url.Values {
	v := url.Values{"search": {f.Search}}
	if f.Status != StatusAll {
		v.Set("status", f.Status)
	}
	return v
}

// URL links to page of the filtered list.
func (f AccountFilters) URL(page int) string { return pageURL("/accounts", f.values(), page) }

// ClearURL resets every filter.
func (f AccountFilters) ClearURL() string { return "/accounts" }

// RuleFilters is the filter bar of /rules.
type RuleFilters struct {
	Type     string
	Status   string
	Severity string
	Page     int
}

func ParseRuleFilters(v url.Values) RuleFilters {
	f := RuleFilters{Status: parseStatus(v.Get("status")), Page: parsePage(v.Get("page"))}
	if t := models.RuleType(strings.TrimSpace(v.Get("type"))); t.Valid() {
		f.Type = string(t)
	}
	if s := models.Severity(strings.TrimSpace(v.Get("severity"))); s.Valid() {
		f.Severity = string(s)
	}
	return f
}

func (f RuleFilters) Query() backend.RuleQuery {
	q := backend.RuleQuery{Page: f.Page, Type: f.Type, Severity: f.Severity}
	switch f.Status {
	case StatusActive:
		q.Active = new(bool)
		*q.Active = true
	case StatusInactive:
		q.Active = new(bool)
	}
	return q
}

func (f RuleFilters) HasActive() bool {
	return f.Type != "" || f.Severity != "" || f.Status != StatusAll
}

func (f RuleFilters) values() url.Values {
	v := url.Values{"type": {f.Type}, "severity": {f.Severity}}
	if f.Status != StatusAll {
		v.Set("status", f.Status)
	}
	return v
}

func (f RuleFilters) URL(page int) string { return pageURL("/rules", f.values(), page) }

func (f RuleFilters) ClearURL() string { return "/rules" }

// IncidentFilters is the filter bar of /incidents.
type IncidentFilters struct {
	Search   string
	Severity string
	Page     int
	PerPage  int
}

// ParseIncidentFilters falls back to defaultPerPage for sizes outside
// config.IncidentsPageSizes.
func ParseIncidentFilters(v url.Values, defaultPerPage int) IncidentFilters {
	f := IncidentFilters{
		Search:  strings.TrimSpace(v.Get("search")),
		Page:    parsePage(v.Get("page")),
		PerPage: defaultPerPage,
	}
	if s := models.Severity(strings.TrimSpace(v.Get("severity"))); s.Valid() {
		f.Severity = string(s)
	}
	if n, err := strconv.Atoi(v.Get("per_page")); err == nil && slices.Contains(config.IncidentsPageSizes, n) {
		f.PerPage = n
	}
	return f
}

func (f IncidentFilters) Query() backend.IncidentQuery {
	return backend.IncidentQuery{Page: f.Page, PerPage: f.PerPage, Severity: f.Severity, Search: f.Search}
}

func (f IncidentFilters) HasActive() bool {
	return f.Search != "" || f.Severity != ""
}

func (f IncidentFilters) values() url.Values {
	return url.Values{
		"search":   {f.Search},
		"severity": {f.Severity},
		"per_page": {strconv.Itoa(f.PerPage)},
	}
}

func (f IncidentFilters) URL(page int) string { return pageURL("/incidents", f.values(), page) }

// PerPageURL switches the page size and returns to page 1.
func (f IncidentFilters) PerPageURL(n int) string {
	f.PerPage = n
	return f.URL(1)
}

// ClearURL drops search and severity but keeps the page size.
func (f IncidentFilters) ClearURL() string {
	return pageURL("/incidents", url.Values{"per_page": {strconv.Itoa(f.PerPage)}}, 1)
}
