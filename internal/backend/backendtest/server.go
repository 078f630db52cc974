// Package backendtest runs an in-memory risk backend for tests.
package backendtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"risk-console/internal/models"
)

// Server is a stateful fake of the risk backend REST API.
type Server struct {
	*httptest.Server
	APIKey string

	mu        sync.Mutex
	accounts  []models.Account
	trades    map[int64][]models.Trade
	rules     []models.RiskRule
	incidents []models.Incident
	calls     map[string]int
	queries   map[string][]string
	failures  map[string]int
	bodies    map[string][]byte
	nextRule  int64
}

// New starts a server seeded with Seed() data. It is closed on test cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		APIKey:   "test-key",
		trades:   map[int64][]models.Trade{},
		calls:    map[string]int{},
		queries:  map[string][]string{},
		failures: map[string]int{},
		bodies:   map[string][]byte{},
	}
	s.Seed()

	mux := http.NewServeMux()
	s.route(mux, "GET /accounts", s.listAccounts)
	s.route(mux, "GET /accounts/{id}", s.getAccount)
	s.route(mux, "GET /accounts/{id}/risk-status", s.riskStatus)
	s.route(mux, "GET /accounts/{id}/incidents", s.accountIncidents)
	s.route(mux, "POST /accounts/{id}/enable-trading", s.setTrading(models.ToggleEnable))
	s.route(mux, "POST /accounts/{id}/disable-trading", s.setTrading(models.ToggleDisable))
	s.route(mux, "GET /trades", s.listTrades)
	s.route(mux, "GET /rules", s.listRules)
	s.route(mux, "GET /rules/types/info", s.typesInfo)
	s.route(mux, "GET /rules/{id}", s.getRule)
	s.route(mux, "POST /rules", s.createRule)
	s.route(mux, "PUT /rules/{id}", s.updateRule)
	s.route(mux, "DELETE /rules/{id}", s.deleteRule)
	s.route(mux, "POST /rules/{id}/toggle-active", s.toggleRule)
	s.route(mux, "POST /rules/{id}/actions", s.assignActions)
	s.route(mux, "GET /risk-rules/{id}/incidents", s.ruleIncidents)
	s.route(mux, "GET /incidents", s.listIncidents)
	s.route(mux, "GET /incidents/statistics", s.statistics)
	s.route(mux, "POST /incidents/{id}/resolve", s.resolveIncident)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Seed resets the dataset: three accounts, two rules and three incidents.
func (s *Server) Seed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	closed := at.Add(90 * time.Second)
	s.accounts = []models.Account{
		{ID: 1, Login: 1001, Status: models.ToggleEnable, TradingStatus: models.ToggleEnable, CreatedAt: at},
		{ID: 2, Login: 1002, Status: models.ToggleEnable, TradingStatus: models.ToggleDisable, CreatedAt: at.Add(time.Hour)},
		{ID: 3, Login: 2001, Status: models.ToggleDisable, TradingStatus: models.ToggleDisable, CreatedAt: at.Add(2 * time.Hour)},
	}
	s.trades = map[int64][]models.Trade{
		1: {
			{ID: 10, AccountID: 1, Type: models.TradeBuy, Volume: decimal.RequireFromString("0.10"), OpenTime: at,
				CloseTime: &closed, OpenPrice: decimal.RequireFromString("1.10000"),
				ClosePrice: decimal.NewNullDecimal(decimal.RequireFromString("1.10250")), Status: models.TradeClosed},
			{ID: 11, AccountID: 1, Type: models.TradeSell, Volume: decimal.RequireFromString("1.00"), OpenTime: at.Add(time.Minute),
				OpenPrice: decimal.RequireFromString("1.20000"), Status: models.TradeOpen},
		},
	}
	s.rules = []models.RiskRule{
		{ID: 1, Name: "Scalping", Description: "Trades shorter than a minute", Type: models.RuleDuration,
			Severity: models.SeverityHard, Params: models.DurationParams{MinDurationSeconds: 60}, IsActive: true, CreatedAt: at},
		{ID: 2, Name: "Volume spike", Type: models.RuleVolume, Severity: models.SeveritySoft,
			Params: models.VolumeParams{MinFactor: decimal.RequireFromString("0.5"), MaxFactor: decimal.RequireFromString("2"), LookbackTrades: 10},
			IncidentsBeforeAction: models.IntPtr(3), IsActive: false, CreatedAt: at,
			Actions: []models.RuleAction{{ID: 1, RuleID: 2, Type: models.ActionEmail, Config: models.EmailConfig{EmailTo: "risk@example.com", Subject: "Alerta"}, Order: 1}}},
	}
	s.nextRule = 3
	s.incidents = []models.Incident{
		{ID: 1, Account: &s.accounts[0], Rule: &models.RiskRule{ID: 1, Name: "Scalping"}, Severity: models.SeverityHard, Description: "Trade closed after 30s", CreatedAt: at},
		{ID: 2, Account: &s.accounts[0], Rule: &models.RiskRule{ID: 2, Name: "Volume spike"}, Severity: models.SeveritySoft, Description: "Volume 3x average", CreatedAt: at.Add(time.Minute)},
		{ID: 3, Account: &s.accounts[1], Rule: &models.RiskRule{ID: 1, Name: "Scalping"}, Severity: models.SeverityHard, Description: "Trade closed after 12s", CreatedAt: at.Add(2 * time.Minute)},
	}
}

// SetAccounts replaces the account dataset.
func (s *Server) SetAccounts(accounts []models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
}

// SetIncidents replaces the incident dataset.
func (s *Server) SetIncidents(incidents []models.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = incidents
}

// Fail makes the route answer status until cleared with status 0.
func (s *Server) Fail(pattern string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, pattern)
		return
	}
	s.failures[pattern] = status
}

// Calls returns how many requests hit the route pattern.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// Queries returns the raw query strings received by the route pattern.
func (s *Server) Queries(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queries[pattern])
}

// LastBody returns the last request body received by the route pattern.
func (s *Server) LastBody(pattern string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[pattern]
}

// Account returns a copy of the stored account.
func (s *Server) Account(id int64) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return models.Account{}, false
}

// Rule returns a copy of the stored rule.
func (s *Server) Rule(id int64) (models.RiskRule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ruleIndex(id)
	if i < 0 {
		return models.RiskRule{}, false
	}
	return s.rules[i], true
}

type handler func(w http.ResponseWriter, r *http.Request, body []byte)

func (s *Server) route(mux *http.ServeMux, pattern string, h handler) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.calls[pattern]++
		s.queries[pattern] = append(s.queries[pattern], r.URL.RawQuery)
		if len(body) > 0 {
			s.bodies[pattern] = body
		}
		status := s.failures[pattern]
		s.mu.Unlock()

		if r.Header.Get("X-API-KEY") != s.APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		h(w, r, body)
	})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request, _ []byte) {
	q := r.URL.Query()
	search, status := q.Get("search"), q.Get("status")
	var out []models.Account
	for _, a := range s.accounts {
		if search != "" && !strings.Contains(strconv.FormatInt(a.Login, 10), search) {
			continue
		}
		if status != "" && string(a.Status) != status {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, paginate(out, q, 15))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request, _ []byte) {
	id := pathID(r)
	for _, a := range s.accounts {
		if a.ID != id {
			continue
		}
		details := models.AccountDetails{Account: a, Trades: s.trades[id], Incidents: s.incidentsWhere(func(in models.Incident) bool {
			return in.Account != nil && in.Account.ID == id
		})}
		if details.Trades == nil {
			details.Trades = []models.Trade{}
		}
		writeJSON(w, http.StatusOK, details)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Account not found"})
}

func (s *Server) riskStatus(w http.ResponseWriter, r *http.Request, _ []byte) {
	id := pathID(r)
	for _, a := range s.accounts {
		if a.ID != id {
			continue
		}
		data := models.RiskData{AccountID: a.ID, Login: a.Login, Status: a.Status, TradingStatus: a.TradingStatus, RiskLevel: models.RiskLow}
		for _, in := range s.incidents {
			if in.Account == nil || in.Account.ID != id {
				continue
			}
			if in.Severity == models.SeverityHard {
				data.IncidentsBySeverity.Hard++
			} else {
				data.IncidentsBySeverity.Soft++
			}
		}
		for _, tr := range s.trades[id] {
			if tr.Status == models.TradeOpen {
				data.OpenTradesCount++
			} else {
				data.ClosedTradesCount++
			}
		}
		if data.IncidentsBySeverity.Hard > 0 {
			data.RiskLevel = models.RiskHigh
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Account not found"})
}

func (s *Server) accountIncidents(w http.ResponseWriter, r *http.Request, _ []byte) {
	id := pathID(r)
	out := s.incidentsWhere(func(in models.Incident) bool { return in.Account != nil && in.Account.ID == id })
	writeJSON(w, http.StatusOK, paginate(out, r.URL.Query(), 15))
}

func (s *Server) setTrading(state models.Toggle) handler {
	return func(w http.ResponseWriter, r *http.Request, _ []byte) {
		id := pathID(r)
		for i := range s.accounts {
			if s.accounts[i].ID == id {
				s.accounts[i].TradingStatus = state
				writeJSON(w, http.StatusOK, models.MutationResult[models.Account]{Message: "Trading status updated", Data: s.accounts[i]})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Account not found"})
	}
}

func (s *Server) listTrades(w http.ResponseWriter, r *http.Request, _ []byte) {
	q := r.URL.Query()
	var out []models.Trade
	ids := make([]int64, 0, len(s.trades))
	for id := range s.trades {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if acc := q.Get("account_id"); acc != "" && acc != strconv.FormatInt(id, 10) {
			continue
		}
		for _, tr := range s.trades[id] {
			if st := q.Get("status"); st != "" && string(tr.Status) != st {
				continue
			}
			out = append(out, tr)
		}
	}
	writeJSON(w, http.StatusOK, paginate(out, q, 15))
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request, _ []byte) {
	q := r.URL.Query()
	var out []models.RiskRule
	for _, rule := range s.rules {
		if t := q.Get("type"); t != "" && string(rule.Type) != t {
			continue
		}
		if sev := q.Get("severity"); sev != "" && string(rule.Severity) != sev {
			continue
		}
		if act := q.Get("is_active"); act != "" && (act == "1") != rule.IsActive {
			continue
		}
		out = append(out, rule)
	}
	writeJSON(w, http.StatusOK, paginate(out, q, 15))
}

func (s *Server) typesInfo(w http.ResponseWriter, _ *http.Request, _ []byte) {
	writeJSON(w, http.StatusOK, models.RuleTypesInfo{
		Types: models.RuleTypes,
		TypesInfo: map[models.RuleType]models.TypeInfo{
			models.RuleDuration:   {Label: "Duración mínima"},
			models.RuleVolume:     {Label: "Volumen anómalo"},
			models.RuleOpenTrades: {Label: "Operaciones abiertas"},
		},
		Severities:  []models.Severity{models.SeverityHard, models.SeveritySoft},
		ActionTypes: models.ActionTypes,
	})
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request, _ []byte) {
	i := s.ruleIndex(pathID(r))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Rule not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.rules[i])
}

func (s *Server) createRule(w http.ResponseWriter, _ *http.Request, body []byte) {
	var rule models.RiskRule
	if err := json.Unmarshal(body, &rule); err != nil || rule.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "The given data was invalid."})
		return
	}
	rule.ID = s.nextRule
	s.nextRule++
	rule.CreatedAt = time.Now().UTC()
	s.rules = append(s.rules, rule)
	writeJSON(w, http.StatusCreated, models.MutationResult[models.RiskRule]{Message: "Rule created", Data: rule})
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request, body []byte) {
	i := s.ruleIndex(pathID(r))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Rule not found"})
		return
	}
	var rule models.RiskRule
	if err := json.Unmarshal(body, &rule); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
		return
	}
	rule.ID = s.rules[i].ID
	rule.Actions = s.rules[i].Actions
	rule.CreatedAt = s.rules[i].CreatedAt
	s.rules[i] = rule
	writeJSON(w, http.StatusOK, models.MutationResult[models.RiskRule]{Message: "Rule updated", Data: rule})
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request, _ []byte) {
	i := s.ruleIndex(pathID(r))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Rule not found"})
		return
	}
	s.rules = slices.Delete(s.rules, i, i+1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Rule deleted"})
}

func (s *Server) toggleRule(w http.ResponseWriter, r *http.Request, _ []byte) {
	i := s.ruleIndex(pathID(r))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Rule not found"})
		return
	}
	s.rules[i].IsActive = !s.rules[i].IsActive
	writeJSON(w, http.StatusOK, models.MutationResult[models.RiskRule]{Message: "Rule toggled", Data: s.rules[i]})
}

func (s *Server) assignActions(w http.ResponseWriter, r *http.Request, body []byte) {
	i := s.ruleIndex(pathID(r))
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Rule not found"})
		return
	}
	var payload struct {
		Actions []models.ActionSpec `json:"actions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
		return
	}
	actions := make([]models.RuleAction, 0, len(payload.Actions))
	for n, a := range payload.Actions {
		actions = append(actions, models.RuleAction{ID: int64(n + 1), RuleID: s.rules[i].ID, Type: a.Type, Config: a.Config, Order: a.Order})
	}
	s.rules[i].Actions = actions
	writeJSON(w, http.StatusOK, models.MutationResult[models.RiskRule]{Message: "Actions assigned", Data: s.rules[i]})
}

func (s *Server) ruleIncidents(w http.ResponseWriter, r *http.Request, _ []byte) {
	id := pathID(r)
	out := s.incidentsWhere(func(in models.Incident) bool { return in.Rule != nil && in.Rule.ID == id })
	writeJSON(w, http.StatusOK, paginate(out, r.URL.Query(), 15))
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request, _ []byte) {
	q := r.URL.Query()
	sev, search := q.Get("severity"), strings.ToLower(q.Get("search"))
	out := s.incidentsWhere(func(in models.Incident) bool {
		if sev != "" && string(in.Severity) != sev {
			return false
		}
		if search == "" {
			return true
		}
		if strings.Contains(strings.ToLower(in.Description), search) {
			return true
		}
		if in.Rule != nil && strings.Contains(strings.ToLower(in.Rule.Name), search) {
			return true
		}
		return in.Account != nil && strings.Contains(strconv.FormatInt(in.Account.Login, 10), search)
	})
	writeJSON(w, http.StatusOK, paginate(out, q, 10))
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request, _ []byte) {
	stats := models.IncidentStatistics{TimeRange: r.URL.Query().Get("time_range"), Total: len(s.incidents)}
	counts := map[string]int{}
	for _, in := range s.incidents {
		if in.Severity == models.SeverityHard {
			stats.BySeverity.Hard++
		} else {
			stats.BySeverity.Soft++
		}
		if in.Rule != nil {
			counts[in.Rule.Name]++
		}
	}
	for name, n := range counts {
		stats.TopRules = append(stats.TopRules, models.TopRule{Name: name, Count: n})
	}
	slices.SortFunc(stats.TopRules, func(a, b models.TopRule) int { return b.Count - a.Count })
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) resolveIncident(w http.ResponseWriter, r *http.Request, _ []byte) {
	id := pathID(r)
	for i := range s.incidents {
		if s.incidents[i].ID == id {
			now := time.Now().UTC()
			s.incidents[i].ResolvedAt = &now
			writeJSON(w, http.StatusOK, models.MutationResult[models.Incident]{Message: "Incident resolved", Data: s.incidents[i]})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Incident not found"})
}

func (s *Server) ruleIndex(id int64) int {
	return slices.IndexFunc(s.rules, func(r models.RiskRule) bool { return r.ID == id })
}

func (s *Server) incidentsWhere(keep func(models.Incident) bool) []models.Incident {
	out := []models.Incident{}
	for _, in := range s.incidents {
		if keep(in) {
			out = append(out, in)
		}
	}
	return out
}

func paginate[T any](items []T, q map[string][]string, defaultPerPage int) models.Page[T] {
	page, _ := strconv.Atoi(first(q["page"]))
	perPage, _ := strconv.Atoi(first(q["per_page"]))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	total := len(items)
	last := max(1, (total+perPage-1)/perPage)
	from := (page - 1) * perPage
	to := min(from+perPage, total)
	data := []T{}
	if from < total {
		data = items[from:to]
	}
	p := models.Page[T]{CurrentPage: page, Data: data, LastPage: last, PerPage: perPage, Total: total}
	if len(data) > 0 {
		p.From, p.To = from+1, to
	}
	return p
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
