package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"risk-console/internal/backend"
	"risk-console/internal/models"
	"risk-console/internal/ruleform"
	"risk-console/internal/views"
	"risk-console/pkg/config"
	"risk-console/pkg/db"
	"risk-console/pkg/i18n"
)

// TradesPerPage is the in-process page size of an account's trades tab.
const TradesPerPage = 10

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func tabOf(c *gin.Context, allowed ...string) string {
	tab := c.Query("tab")
	for _, t := range allowed {
		if t == tab {
			return tab
		}
	}
	return allowed[0]
}

// --- Dashboard ---

type dashboardView struct {
	Stats views.DashboardStats
}

func (s *Server) dashboardPage(c *gin.Context) {
	d, err := s.Console.Dashboard(c.Request.Context())
	if err != nil {
		s.renderLoadError(c, err, "", "")
		return
	}
	s.render(c, http.StatusOK, "dashboard", "Dashboard", dashboardView{Stats: views.NewDashboardStats(d)})
}

// --- Accounts ---

type accountsView struct {
	Filters    views.AccountFilters
	Accounts   []models.Account
	Stats      views.AccountsStats
	Pagination views.Pagination
}

func (v accountsView) Showing() string {
	return i18n.Getf("ShowingAccounts", v.Pagination.Showing, v.Pagination.Total)
}

func (s *Server) accountsPage(c *gin.Context) {
	f := views.ParseAccountFilters(c.Request.URL.Query())
	page, err := s.Console.ListAccounts(c.Request.Context(), f.Query(s.Options.AccountsPageSize))
	if err != nil {
		s.renderLoadError(c, err, "/", "Dashboard")
		return
	}
	s.render(c, http.StatusOK, "accounts", "Cuentas", accountsView{
		Filters:    f,
		Accounts:   page.Data,
		Stats:      views.NewAccountsStats(page.Data),
		Pagination: views.NewPagination(page.CurrentPage, page.LastPage, page.Total, len(page.Data), f.URL),
	})
}

type accountView struct {
	Account    *models.AccountDetails
	Risk       *models.RiskData
	Tab        string
	Trades     []models.Trade
	TradePager views.Pagination
	Incidents  []models.Incident
	ReturnTo   string
}

func (v accountView) TabURL(tab string) string {
	return fmt.Sprintf("/accounts/%d?tab=%s", v.Account.ID, tab)
}

func (s *Server) accountPage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		s.renderNotFound(c, i18n.Getf("AccountNotFound", 0), "/accounts", "Cuentas")
		return
	}
	ctx := c.Request.Context()
	account, err := s.Console.GetAccount(ctx, id)
	switch views.Resolve(err, account != nil) {
	case views.StateError:
		s.renderLoadError(c, err, "/accounts", "Cuentas")
		return
	case views.StateNotFound:
		s.renderNotFound(c, i18n.Getf("AccountNotFound", id), "/accounts", "Cuentas")
		return
	}

	v := accountView{
		Account:   account,
		Tab:       tabOf(c, "overview", "trades", "incidents"),
		Incidents: account.Incidents,
		ReturnTo:  c.Request.URL.RequestURI(),
	}
	risk, err := s.Console.GetRiskStatus(ctx, id)
	if err != nil {
		s.Logger.Warn("risk status unavailable", "account", id, "error", err)
	} else {
		v.Risk = risk
	}

	tpage, _ := strconv.Atoi(c.Query("tpage"))
	trades, cur, last := views.Paginate(account.Trades, tpage, TradesPerPage)
	v.Trades = trades
	v.TradePager = views.NewPagination(cur, last, len(account.Trades), len(trades), func(n int) string {
		return fmt.Sprintf("/accounts/%d?tab=trades&tpage=%d", id, n)
	})
	s.render(c, http.StatusOK, "account", fmt.Sprintf("Cuenta %d", account.Login), v)
}

// --- Rules ---

type ruleTypeOption struct {
	Value models.RuleType
	Label string
}

// ruleTypes labels every rule type from the backend catalog, falling back to
// the configured labels and then the raw value.
func (s *Server) ruleTypes(ctx context.Context) []ruleTypeOption {
	info, err := s.Console.RuleTypesInfo(ctx)
	if err != nil {
		s.Logger.Debug("rule types info unavailable", "error", err)
		info = nil
	}
	out := make([]ruleTypeOption, 0, len(models.RuleTypes))
	for _, t := range models.RuleTypes {
		label := info.Label(t)
		if label == string(t) {
			if l, ok := s.Options.RuleTypeLabels[string(t)]; ok && l != "" {
				label = l
			}
		}
		out = append(out, ruleTypeOption{Value: t, Label: label})
	}
	return out
}

func typeLabel(opts []ruleTypeOption, t models.RuleType) string {
	for _, o := range opts {
		if o.Value == t {
			return o.Label
		}
	}
	return string(t)
}

type rulesView struct {
	Filters    views.RuleFilters
	Rules      []models.RiskRule
	Stats      views.RulesStats
	Pagination views.Pagination
	Types      []ruleTypeOption
	ReturnTo   string
}

func (v rulesView) TypeLabel(t models.RuleType) string { return typeLabel(v.Types, t) }

func (s *Server) rulesPage(c *gin.Context) {
	ctx := c.Request.Context()
	f := views.ParseRuleFilters(c.Request.URL.Query())
	page, err := s.Console.ListRules(ctx, f.Query())
	if err != nil {
		s.renderLoadError(c, err, "/", "Dashboard")
		return
	}
	s.render(c, http.StatusOK, "rules", "Reglas de riesgo", rulesView{
		Filters:    f,
		Rules:      page.Data,
		Stats:      views.NewRulesStats(page.Data),
		Pagination: views.NewPagination(page.CurrentPage, page.LastPage, page.Total, len(page.Data), f.URL),
		Types:      s.ruleTypes(ctx),
		ReturnTo:   c.Request.URL.RequestURI(),
	})
}

type ruleView struct {
	Rule        *models.RiskRule
	Tab         string
	TypeName    string
	Actions     []models.RuleAction
	Incidents   []models.Incident
	ActionForm  ruleform.ActionForm
	ActionError map[string]string
	ActionTypes []models.ActionType
}

func (v ruleView) TabURL(tab string) string {
	return fmt.Sprintf("/rules/%d?tab=%s", v.Rule.ID, tab)
}

var actionTypes = []models.ActionType{
	models.ActionEmail, models.ActionSlack, models.ActionDisableAccount, models.ActionDisableTrading,
}

func (s *Server) rulePage(c *gin.Context) {
	s.renderRule(c, http.StatusOK, ruleform.NewActionForm(), nil)
}

// renderRule shows the rule detail; the action form is re-rendered with its
// error after a failed assignment.
func (s *Server) renderRule(c *gin.Context, status int, form ruleform.ActionForm, formErr *ruleform.FieldError) {
	id, ok := pathID(c)
	if !ok {
		s.renderNotFound(c, i18n.Getf("RuleNotFound", 0), "/rules", "Reglas")
		return
	}
	ctx := c.Request.Context()
	rule, err := s.Console.GetRule(ctx, id)
	switch views.Resolve(err, rule != nil) {
	case views.StateError:
		s.renderLoadError(c, err, "/rules", "Reglas")
		return
	case views.StateNotFound:
		s.renderNotFound(c, i18n.Getf("RuleNotFound", id), "/rules", "Reglas")
		return
	}

	v := ruleView{
		Rule:        rule,
		Tab:         tabOf(c, "overview", "parameters", "incidents", "actions"),
		TypeName:    typeLabel(s.ruleTypes(ctx), rule.Type),
		Actions:     rule.Actions,
		Incidents:   rule.Incidents,
		ActionForm:  form,
		ActionError: formErr.Errors(),
		ActionTypes: actionTypes,
	}
	if formErr != nil {
		v.Tab = "actions"
	}
	switch v.Tab {
	case "actions":
		if actions, err := s.Console.RuleActions(ctx, id); err == nil {
			v.Actions = actions
		}
	case "incidents":
		if page, err := s.Console.RuleIncidents(ctx, id); err == nil && page != nil {
			v.Incidents = page.Data
		}
	}
	s.render(c, status, "rule", rule.Name, v)
}

type ruleFormView struct {
	Form    ruleform.Form
	Errors  map[string]string
	General string
	Types   []ruleTypeOption
	Action  string
}

func (s *Server) formDefaults() ruleform.Form {
	return ruleform.DefaultsFrom(s.Options.FormDefaults)
}

func (s *Server) newRulePage(c *gin.Context) {
	s.renderRuleForm(c, http.StatusOK, s.formDefaults(), nil, "")
}

func (s *Server) editRulePage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		s.renderNotFound(c, i18n.Getf("RuleNotFound", 0), "/rules", "Reglas")
		return
	}
	rule, err := s.Console.GetRule(c.Request.Context(), id)
	switch views.Resolve(err, rule != nil) {
	case views.StateError:
		s.renderLoadError(c, err, "/rules", "Reglas")
		return
	case views.StateNotFound:
		s.renderNotFound(c, i18n.Getf("RuleNotFound", id), "/rules", "Reglas")
		return
	}
	s.renderRuleForm(c, http.StatusOK, ruleform.FromRule(rule, s.formDefaults()), nil, "")
}

func (s *Server) renderRuleForm(c *gin.Context, status int, f ruleform.Form, fe *ruleform.FieldError, general string) {
	v := ruleFormView{
		Form:    f,
		Errors:  fe.Errors(),
		General: general,
		Types:   s.ruleTypes(c.Request.Context()),
		Action:  "/rules",
	}
	title := "Nueva regla"
	if f.Editing() {
		v.Action = fmt.Sprintf("/rules/%d", f.RuleID)
		title = "Editar regla"
	}
	s.render(c, status, "rule_form", title, v)
}

// --- Incidents ---

type incidentsView struct {
	Filters    views.IncidentFilters
	Incidents  []models.Incident
	Stats      views.IncidentsStats
	Pagination views.Pagination
	PageSizes  []int
	ReturnTo   string
}

func (s *Server) incidentsPage(c *gin.Context) {
	ctx := c.Request.Context()
	f := views.ParseIncidentFilters(c.Request.URL.Query(), s.Options.IncidentsPageSize)
	page, err := s.Console.ListIncidents(ctx, f.Query())
	if err != nil {
		s.renderLoadError(c, err, "/", "Dashboard")
		return
	}
	stats, err := s.Console.IncidentStatistics(ctx, backend.StatsQuery{})
	if err != nil {
		s.Logger.Warn("incident statistics unavailable", "error", err)
		stats = nil
	}
	s.render(c, http.StatusOK, "incidents", "Incidentes", incidentsView{
		Filters:    f,
		Incidents:  page.Data,
		Stats:      views.NewIncidentsStats(stats, page, f.HasActive()),
		Pagination: views.NewPagination(page.CurrentPage, page.LastPage, page.Total, len(page.Data), f.URL),
		PageSizes:  config.IncidentsPageSizes,
		ReturnTo:   c.Request.URL.RequestURI(),
	})
}

// --- Audit ---

type auditView struct {
	Entries  []db.AuditEntry
	Operator string
	Action   string
}

func (s *Server) auditPage(c *gin.Context) {
	f := db.AuditFilter{Operator: c.Query("operator"), Action: c.Query("action"), Limit: 200}
	entries, err := s.Console.AuditLog(c.Request.Context(), f)
	if err != nil {
		s.renderLoadError(c, err, "/", "Dashboard")
		return
	}
	s.render(c, http.StatusOK, "audit", "Auditoría", auditView{Entries: entries, Operator: f.Operator, Action: f.Action})
}
