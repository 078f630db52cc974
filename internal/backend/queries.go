package backend

import (
	"net/url"
	"strconv"
	"strings"
)

// AccountQuery filters GET /accounts. Status is "active", "inactive" or empty.
type AccountQuery struct {
	Page    int
	PerPage int
	Search  string
	Status  string
}

// Values encodes the query, omitting zero fields.
func (q AccountQuery) Values() url.Values {
	v := pageValues(q.Page, q.PerPage)
	setString(v, "search", q.Search)
	switch q.Status {
	case "active":
		v.Set("status", "enable")
	case "inactive":
		v.Set("status", "disable")
	}
	return v
}

// RuleQuery filters GET /rules.
type RuleQuery struct {
	Page     int
	PerPage  int
	Type     string
	Severity string
	Active   *bool
}

func (q RuleQuery) Values() url.Values {
	v := pageValues(q.Page, q.PerPage)
	setString(v, "type", q.Type)
	setString(v, "severity", q.Severity)
	if q.Active != nil {
		if *q.Active {
			v.Set("is_active", "1")
		} else {
			v.Set("is_active", "0")
		}
	}
	return v
}

// IncidentQuery filters GET /incidents.
type IncidentQuery struct {
	Page     int
	PerPage  int
	Severity string
	Search   string
}

func (q IncidentQuery) Values() url.Values {
	v := pageValues(q.Page, q.PerPage)
	setString(v, "severity", q.Severity)
	setString(v, "search", q.Search)
	return v
}

// TradeQuery filters GET /trades.
type TradeQuery struct {
	Page      int
	PerPage   int
	AccountID int64
	Status    string
}

func (q TradeQuery) Values() url.Values {
	v := pageValues(q.Page, q.PerPage)
	if q.AccountID > 0 {
		v.Set("account_id", strconv.FormatInt(q.AccountID, 10))
	}
	setString(v, "status", q.Status)
	return v
}

// StatsQuery filters GET /incidents/statistics.
type StatsQuery struct {
	TimeRange string
}

func (q StatsQuery) Values() url.Values {
	v := url.Values{}
	setString(v, "time_range", q.TimeRange)
	return v
}

func pageValues(page, perPage int) url.Values {
	v := url.Values{}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		v.Set("per_page", strconv.Itoa(perPage))
	}
	return v
}

func setString(v url.Values, key, val string) {
	if val = strings.TrimSpace(val); val != "" {
		v.Set(key, val)
	}
}
