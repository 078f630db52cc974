package views

import (
	"errors"
	"net/url"
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	"risk-console/internal/console"
	"risk-console/internal/models"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		current, last int
		want          []int
	}{
		{1, 0, nil},
		{1, 1, []int{1}},
		{3, 4, []int{1, 2, 3, 4}},
		{5, 5, []int{1, 2, 3, 4, 5}},
		{2, 10, []int{1, 2, 3, 4, 5}},
		{3, 10, []int{1, 2, 3, 4, 5}},
		{6, 10, []int{4, 5, 6, 7, 8}},
		{8, 10, []int{6, 7, 8, 9, 10}},
		{10, 10, []int{6, 7, 8, 9, 10}},
		{99, 10, []int{6, 7, 8, 9, 10}},
	}
	for _, tt := range tests {
		got := Window(tt.current, tt.last)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Window(%d, %d) = %v, want %v", tt.current, tt.last, got, tt.want)
		}
	}
}

func TestPaginationLinks(t *testing.T) {
	f := IncidentFilters{Search: "scalp", Severity: "HARD", PerPage: 20}
	p := NewPagination(1, 3, 45, 20, f.URL)
	if p.HasPrev() || !p.HasNext() {
		t.Fatalf("first page prev/next wrong: %+v", p)
	}
	if p.NextURL != "/incidents?page=2&per_page=20&search=scalp&severity=HARD" {
		t.Fatalf("next url %q", p.NextURL)
	}
	if !p.Items[0].Active || p.Items[0].URL != "/incidents?per_page=20&search=scalp&severity=HARD" {
		t.Fatalf("first item %+v", p.Items[0])
	}
	if got := p.Label(); got != "Página 1 de 3" {
		t.Fatalf("label %q", got)
	}
	if (Pagination{}).Visible() {
		t.Fatalf("empty pager should be hidden")
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}
	got, cur, last := Paginate(items, 3, 10)
	if cur != 3 || last != 3 || len(got) != 3 || got[0] != 20 {
		t.Fatalf("page 3: %v cur=%d last=%d", got, cur, last)
	}
	got, cur, _ = Paginate(items, 0, 10)
	if cur != 1 || len(got) != 10 {
		t.Fatalf("page clamp: %v cur=%d", got, cur)
	}
	got, cur, last = Paginate([]int(nil), 4, 10)
	if got != nil || cur != 1 || last != 1 {
		t.Fatalf("empty: %v %d %d", got, cur, last)
	}
}

func TestAccountFilters(t *testing.T) {
	f := ParseAccountFilters(url.Values{"search": {" 1001 "}, "status": {"inactive"}, "page": {"2"}})
	q := f.Query(15)
	if q.Search != "1001" || q.Status != "inactive" || q.Page != 2 || q.PerPage != 15 {
		t.Fatalf("query %+v", q)
	}
	if !f.HasActive() || f.ClearURL() != "/accounts" {
		t.Fatalf("filters should be active")
	}
	if got := f.URL(1); got != "/accounts?search=1001&status=inactive" {
		t.Fatalf("url %q", got)
	}

	def := ParseAccountFilters(url.Values{"status": {"bogus"}, "page": {"-3"}})
	if def.Status != StatusAll || def.Page != 1 || def.HasActive() || def.Query(15).Status != "" {
		t.Fatalf("defaults %+v", def)
	}
}

func TestRuleFilters(t *testing.T) {
	f := ParseRuleFilters(url.Values{"type": {"VOLUME"}, "status": {"inactive"}, "severity": {"nope"}})
	q := f.Query()
	if q.Type != "VOLUME" || q.Severity != "" || q.Active == nil || *q.Active {
		t.Fatalf("query %+v", q)
	}
	if q := ParseRuleFilters(url.Values{"status": {"active"}}).Query(); q.Active == nil || !*q.Active {
		t.Fatalf("active filter not applied")
	}
	if ParseRuleFilters(nil).Query().Active != nil {
		t.Fatalf("all should not filter is_active")
	}
}

func TestIncidentFiltersPerPage(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 10},
		{"20", 20},
		{"7", 10},
		{"abc", 10},
		{"50", 50},
	}
	for _, tt := range tests {
		f := ParseIncidentFilters(url.Values{"per_page": {tt.raw}}, 10)
		if f.PerPage != tt.want {
			t.Errorf("per_page %q = %d, want %d", tt.raw, f.PerPage, tt.want)
		}
	}

	f := IncidentFilters{Search: "x", Severity: "SOFT", Page: 4, PerPage: 5}
	if got := f.PerPageURL(50); got != "/incidents?per_page=50&search=x&severity=SOFT" {
		t.Fatalf("per page url %q", got)
	}
	if got := f.ClearURL(); got != "/incidents?per_page=5" {
		t.Fatalf("clear url %q", got)
	}
}

func TestResolve(t *testing.T) {
	if Resolve(errors.New("boom"), true) != StateError {
		t.Fatalf("error should win")
	}
	if Resolve(nil, false) != StateNotFound {
		t.Fatalf("absent entity is not found")
	}
	if s := Resolve(nil, true); s != StateLoaded || s.String() != "loaded" {
		t.Fatalf("loaded state %v", s)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0", "-"},
		{"1.1", "1,10"},
		{"1.23456789", "1,23457"},
		{"1234.5", "1234,50"},
		{"12345.678", "12.345,678"},
		{"1234567.1", "1.234.567,10"},
		{"-0.5", "-0,50"},
	}
	for _, tt := range tests {
		if got := FormatPrice(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatPrice(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if FormatNullPrice(decimal.NullDecimal{}) != "-" {
		t.Fatalf("null price should render a dash")
	}
}

func TestPriceDelta(t *testing.T) {
	closed := models.Trade{
		Status:     models.TradeClosed,
		OpenPrice:  decimal.RequireFromString("1.1000"),
		ClosePrice: decimal.NewNullDecimal(decimal.RequireFromString("1.0950")),
	}
	d := NewPriceDelta(closed)
	if !d.Shown || d.Up || d.Arrow() != "▼" || d.Text != "0,005" {
		t.Fatalf("down delta %+v", d)
	}
	closed.ClosePrice = decimal.NewNullDecimal(decimal.RequireFromString("1.1"))
	if d := NewPriceDelta(closed); !d.Up || d.Arrow() != "▲" {
		t.Fatalf("flat delta should point up: %+v", d)
	}
	if NewPriceDelta(models.Trade{Status: models.TradeOpen}).Shown {
		t.Fatalf("open trade has no delta")
	}
}

func TestLabels(t *testing.T) {
	if ToggleLabel(models.ToggleDisable) != "Deshabilitado" || ToggleLabel(models.ToggleEnable) != "Habilitado" {
		t.Fatalf("toggle labels")
	}
	for level, class := range map[models.RiskLevel]string{
		models.RiskCritical: "bg-error",
		models.RiskHigh:     "bg-warning",
		models.RiskMedium:   "bg-info",
		models.RiskLow:      "bg-success",
		"":                  "bg-base-300",
	} {
		if got := RiskClass(level); got != class {
			t.Errorf("RiskClass(%q) = %q", level, got)
		}
	}
	if got := ActionDescription(models.EmailConfig{EmailTo: "ops@example.com"}); got != "Enviar a: ops@example.com" {
		t.Fatalf("email description %q", got)
	}
	if got := ActionDescription(models.SlackConfig{}); got != "Sin configuración" {
		t.Fatalf("empty slack description %q", got)
	}
	if got := ActionLabel(models.ActionDisableTrading); got != "Deshabilitar Trading" {
		t.Fatalf("action label %q", got)
	}
}

func TestDashboardStats(t *testing.T) {
	accounts := []models.Account{
		{ID: 1, Status: models.ToggleEnable, TradingStatus: models.ToggleEnable},
		{ID: 2, Status: models.ToggleEnable, TradingStatus: models.ToggleDisable},
		{ID: 3, Status: models.ToggleDisable, TradingStatus: models.ToggleDisable},
		{ID: 4, Status: models.ToggleEnable, TradingStatus: models.ToggleDisable},
		{ID: 5, Status: models.ToggleEnable, TradingStatus: models.ToggleDisable},
		{ID: 6, Status: models.ToggleEnable, TradingStatus: models.ToggleDisable},
	}
	d := &console.Dashboard{
		Accounts: &models.Page[models.Account]{Data: accounts, Total: 40},
		Stats:    &models.IncidentStatistics{Total: 7, BySeverity: models.SeverityCounts{Hard: 4, Soft: 3}},
		Rules:    &models.Page[models.RiskRule]{Total: 9},
	}
	s := NewDashboardStats(d)
	if s.ActiveAccounts != 5 || s.ActivePercent != 83 || s.TradingEnabled != 1 || s.TradingPercent != 17 {
		t.Fatalf("account figures %+v", s)
	}
	if len(s.RecentAccounts) != RecentAccountsShown || s.Rules != 9 {
		t.Fatalf("recent/rules %+v", s)
	}
	if s.SeveritySplit() != "4 HARD · 3 SOFT" || s.Level() != "Alta" {
		t.Fatalf("incidents %q %q", s.SeveritySplit(), s.Level())
	}

	d.Stats.BySeverity = models.SeverityCounts{Hard: 2, Soft: 2}
	if NewDashboardStats(d).Level() != "Media" {
		t.Fatalf("tie should be Media")
	}
	if empty := NewDashboardStats(&console.Dashboard{}); empty.ActivePercent != 0 || empty.Level() != "Media" {
		t.Fatalf("empty dashboard %+v", empty)
	}
}

func TestRulesAndIncidentsStats(t *testing.T) {
	rs := NewRulesStats([]models.RiskRule{
		{IsActive: true, Severity: models.SeverityHard},
		{IsActive: false, Severity: models.SeveritySoft},
		{IsActive: true, Severity: models.SeveritySoft},
	})
	if rs.Total != 3 || rs.Active != 2 || rs.ActivePercent != 67 || rs.Hard != 1 || rs.Soft != 2 {
		t.Fatalf("rules stats %+v", rs)
	}

	page := &models.Page[models.Incident]{CurrentPage: 2, LastPage: 3, Total: 25, Data: make([]models.Incident, 10)}
	is := NewIncidentsStats(&models.IncidentStatistics{Total: 80}, page, true)
	if is.Total != 80 || is.Filtered != 25 || is.Current != 2 || is.LastPage != 3 || is.Showing != 10 {
		t.Fatalf("incidents stats %+v", is)
	}
	if is.FilterLabel() != "Con filtros aplicados" {
		t.Fatalf("filter label %q", is.FilterLabel())
	}
	if NewIncidentsStats(nil, nil, false).FilterLabel() != "Sin filtros" {
		t.Fatalf("unfiltered label")
	}
}
