package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Cache resources. Detail resources carry the id after a colon.
const (
	ResourceAccounts         = "accounts"
	ResourceAccount          = "account"
	ResourceAccountRisk      = "account-risk"
	ResourceTrades           = "trades"
	ResourceRules            = "risk-rules"
	ResourceRule             = "risk-rule"
	ResourceRuleActions      = "rule-actions"
	ResourceRuleTypesInfo    = "rule-types-info"
	ResourceIncidents        = "incidents"
	ResourceIncidentStats    = "incidents-stats"
	ResourceAccountIncidents = "account-incidents"
	ResourceRuleIncidents    = "rule-incidents"
)

// Key identifies one cached response: a resource plus its request parameters.
type Key struct {
	Resource string
	Params   url.Values
}

// NewKey builds a key, dropping empty parameter values.
func NewKey(resource string, params url.Values) Key {
	var clean url.Values
	for k, vs := range params {
		for _, v := range vs {
			if v == "" {
				continue
			}
			if clean == nil {
				clean = url.Values{}
			}
			clean.Add(k, v)
		}
	}
	return Key{Resource: resource, Params: clean}
}

// ByID is the key of a single entity, e.g. risk-rule:7.
func ByID(resource string, id int64) Key {
	return Key{Resource: resource + ":" + strconv.FormatInt(id, 10)}
}

// String renders resource[?sorted-encoded-params]. url.Values.Encode sorts by key.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Resource
	}
	return k.Resource + "?" + k.Params.Encode()
}

// Covers reports whether invalidating k must drop the cached entry stored under s.
// A key without params covers its whole resource, including per-id entries.
func (k Key) Covers(s string) bool {
	if len(k.Params) > 0 {
		return s == k.String()
	}
	if s == k.Resource {
		return true
	}
	rest, ok := strings.CutPrefix(s, k.Resource)
	if !ok {
		return false
	}
	return strings.HasPrefix(rest, "?") || strings.HasPrefix(rest, ":")
}
