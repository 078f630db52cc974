package views

import (
	"math"

	"risk-console/internal/console"
	"risk-console/internal/models"
	"risk-console/pkg/i18n"
)

// RecentAccountsShown is how many accounts the dashboard lists.
const RecentAccountsShown = 5

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// DashboardStats is the landing page grid. Account figures cover the
// fetched page only.
type DashboardStats struct {
	Accounts        int
	ActiveAccounts  int
	ActivePercent   int
	TradingEnabled  int
	TradingPercent  int
	Incidents       int
	Hard            int
	Soft            int
	Rules           int
	RecentAccounts  []models.Account
	incidentsByHard bool
}

func NewDashboardStats(d *console.Dashboard) DashboardStats {
	var s DashboardStats
	if d == nil {
		return s
	}
	if d.Accounts != nil {
		s.Accounts = len(d.Accounts.Data)
		for _, a := range d.Accounts.Data {
			if a.Status.Enabled() {
				s.ActiveAccounts++
			}
			if a.TradingStatus.Enabled() {
				s.TradingEnabled++
			}
		}
		s.ActivePercent = percent(s.ActiveAccounts, s.Accounts)
		s.TradingPercent = percent(s.TradingEnabled, s.Accounts)
		s.RecentAccounts = d.Accounts.Data[:min(RecentAccountsShown, len(d.Accounts.Data))]
	}
	if d.Stats != nil {
		s.Incidents = d.Stats.Total
		s.Hard = d.Stats.BySeverity.Hard
		s.Soft = d.Stats.BySeverity.Soft
		s.incidentsByHard = d.Stats.HardDominant()
	}
	if d.Rules != nil {
		s.Rules = d.Rules.Total
	}
	return s
}

// SeveritySplit renders "3 HARD · 1 SOFT".
func (s DashboardStats) SeveritySplit() string {
	return SeveritySplit(s.Hard, s.Soft)
}

// Level is "Alta" when HARD incidents outnumber SOFT ones, "Media" otherwise.
func (s DashboardStats) Level() string {
	if s.incidentsByHard {
		return i18n.M().SeverityHigh
	}
	return i18n.M().SeverityMedium
}

func SeveritySplit(hard, soft int) string {
	return itoa(hard) + " HARD · " + itoa(soft) + " SOFT"
}

// AccountsStats summarizes the accounts on the current page.
type AccountsStats struct {
	Total          int
	TradingActive  int
	TradingPercent int
	Active         int
}

func NewAccountsStats(accounts []models.Account) AccountsStats {
	s := AccountsStats{Total: len(accounts)}
	for _, a := range accounts {
		if a.TradingStatus.Enabled() {
			s.TradingActive++
		}
		if a.Status.Enabled() {
			s.Active++
		}
	}
	s.TradingPercent = percent(s.TradingActive, s.Total)
	return s
}

// RulesStats summarizes the listed rules.
type RulesStats struct {
	Total         int
	Active        int
	ActivePercent int
	Hard          int
	Soft          int
}

func NewRulesStats(rules []models.RiskRule) RulesStats {
	s := RulesStats{Total: len(rules)}
	for _, r := range rules {
		if r.IsActive {
			s.Active++
		}
		switch r.Severity {
		case models.SeverityHard:
			s.Hard++
		case models.SeveritySoft:
			s.Soft++
		}
	}
	s.ActivePercent = percent(s.Active, s.Total)
	return s
}

// IncidentsStats feeds the four cards of /incidents.
type IncidentsStats struct {
	Total     int
	Filtered  int
	Current   int
	LastPage  int
	Showing   int
	Filtering bool
}

// NewIncidentsStats uses the statistics total as the historical count and
// the page total as the filtered count.
func NewIncidentsStats(stats *models.IncidentStatistics, page *models.Page[models.Incident], filtering bool) IncidentsStats {
	s := IncidentsStats{Filtering: filtering, Current: 1, LastPage: 1}
	if page != nil {
		s.Filtered = page.Total
		s.Current = max(page.CurrentPage, 1)
		s.LastPage = max(page.LastPage, 1)
		s.Showing = len(page.Data)
	}
	s.Total = s.Filtered
	if stats != nil {
		s.Total = stats.Total
	}
	return s
}

func (s IncidentsStats) FilterLabel() string {
	if s.Filtering {
		return "Con filtros aplicados"
	}
	return "Sin filtros"
}
