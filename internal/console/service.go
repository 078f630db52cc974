// Package console is the data layer behind every page, CLI command and live
// session: cached reads of the risk backend and mutations that invalidate
// the affected cache keys and leave an audit trail.
package console

import (
	"context"

	"risk-console/internal/backend"
	"risk-console/internal/models"
	"risk-console/internal/query"
	"risk-console/pkg/db"
)

// Service defines the operations the API and CLI layers use.
type Service interface {
	// Account queries
	ListAccounts(ctx context.Context, q backend.AccountQuery) (*models.Page[models.Account], error)
	GetAccount(ctx context.Context, id int64) (*models.AccountDetails, error)
	GetRiskStatus(ctx context.Context, id int64) (*models.RiskData, error)
	AccountIncidents(ctx context.Context, id int64) (*models.Page[models.Incident], error)
	ListTrades(ctx context.Context, q backend.TradeQuery) (*models.Page[models.Trade], error)

	// Account commands
	EnableTrading(ctx context.Context, actor Actor, id int64) (*models.Account, error)
	DisableTrading(ctx context.Context, actor Actor, id int64) (*models.Account, error)

	// Rule queries
	ListRules(ctx context.Context, q backend.RuleQuery) (*models.Page[models.RiskRule], error)
	GetRule(ctx context.Context, id int64) (*models.RiskRule, error)
	RuleActions(ctx context.Context, id int64) ([]models.RuleAction, error)
	RuleTypesInfo(ctx context.Context) (*models.RuleTypesInfo, error)
	RuleIncidents(ctx context.Context, id int64) (*models.Page[models.Incident], error)

	// Rule commands
	CreateRule(ctx context.Context, actor Actor, sub models.RuleSubmission) (*models.RiskRule, error)
	UpdateRule(ctx context.Context, actor Actor, id int64, sub models.RuleSubmission) (*models.RiskRule, error)
	DeleteRule(ctx context.Context, actor Actor, id int64) error
	ToggleRule(ctx context.Context, actor Actor, id int64) error
	AssignActions(ctx context.Context, actor Actor, id int64, actions []models.ActionSpec) error
	AppendAction(ctx context.Context, actor Actor, id int64, build func([]models.RuleAction) []models.ActionSpec) error

	// Incidents
	ListIncidents(ctx context.Context, q backend.IncidentQuery) (*models.Page[models.Incident], error)
	IncidentStatistics(ctx context.Context, q backend.StatsQuery) (*models.IncidentStatistics, error)
	ResolveIncident(ctx context.Context, actor Actor, id int64) error

	// Aggregates and housekeeping
	Dashboard(ctx context.Context) (*Dashboard, error)
	AuditLog(ctx context.Context, f db.AuditFilter) ([]db.AuditEntry, error)
	CacheStats(ctx context.Context) (query.Stats, error)
}

// Backend is the subset of the risk backend client the console calls.
type Backend interface {
	ListAccounts(ctx context.Context, q backend.AccountQuery) (*models.Page[models.Account], error)
	GetAccount(ctx context.Context, id int64) (*models.AccountDetails, error)
	GetRiskStatus(ctx context.Context, id int64) (*models.RiskData, error)
	EnableTrading(ctx context.Context, id int64) (*models.MutationResult[models.Account], error)
	DisableTrading(ctx context.Context, id int64) (*models.MutationResult[models.Account], error)
	ListTrades(ctx context.Context, q backend.TradeQuery) (*models.Page[models.Trade], error)

	ListRules(ctx context.Context, q backend.RuleQuery) (*models.Page[models.RiskRule], error)
	GetRule(ctx context.Context, id int64) (*models.RiskRule, error)
	GetRuleTypesInfo(ctx context.Context) (*models.RuleTypesInfo, error)
	CreateRule(ctx context.Context, sub models.RuleSubmission) (*models.MutationResult[models.RiskRule], error)
	UpdateRule(ctx context.Context, id int64, sub models.RuleSubmission) (*models.MutationResult[models.RiskRule], error)
	DeleteRule(ctx context.Context, id int64) error
	ToggleRuleActive(ctx context.Context, id int64) error
	AssignActions(ctx context.Context, id int64, actions []models.ActionSpec) (*models.MutationResult[models.RiskRule], error)

	ListIncidents(ctx context.Context, q backend.IncidentQuery) (*models.Page[models.Incident], error)
	GetIncidentStatistics(ctx context.Context, q backend.StatsQuery) (*models.IncidentStatistics, error)
	ResolveIncident(ctx context.Context, id int64) (*models.MutationResult[models.Incident], error)
	AccountIncidents(ctx context.Context, accountID int64) (*models.Page[models.Incident], error)
	RuleIncidents(ctx context.Context, ruleID int64) (*models.Page[models.Incident], error)
}

// AuditStore persists the mutation trail. *db.Queries satisfies it.
type AuditStore interface {
	InsertAudit(ctx context.Context, e db.AuditEntry) error
	ListAudit(ctx context.Context, f db.AuditFilter) ([]db.AuditEntry, error)
}

// Actor identifies who triggered a mutation.
type Actor struct {
	Operator  string
	RequestID string
}

// Dashboard is the raw data behind the landing page.
type Dashboard struct {
	Accounts *models.Page[models.Account]  `json:"accounts"`
	Stats    *models.IncidentStatistics    `json:"statistics"`
	Rules    *models.Page[models.RiskRule] `json:"rules"`
}
