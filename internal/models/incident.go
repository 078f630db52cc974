package models

import "time"

// Incident is a recorded rule violation.
type Incident struct {
	ID          int64      `json:"id"`
	Rule        *RiskRule  `json:"rule,omitempty"`
	Account     *Account   `json:"account,omitempty"`
	Trade       *Trade     `json:"trade,omitempty"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TopRule is one entry of the most-violated rules ranking.
type TopRule struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// IncidentStatistics is the dashboard aggregate.
type IncidentStatistics struct {
	TimeRange  string         `json:"time_range"`
	Total      int            `json:"total"`
	BySeverity SeverityCounts `json:"by_severity"`
	TopRules   []TopRule      `json:"top_rules"`
}

// HardDominant reports whether HARD incidents outnumber SOFT ones.
func (s IncidentStatistics) HardDominant() bool {
	return s.BySeverity.Hard > s.BySeverity.Soft
}
