package console

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"risk-console/internal/backend"
	"risk-console/internal/events"
	"risk-console/internal/models"
	"risk-console/internal/query"
	"risk-console/pkg/db"
)

// DashboardAccounts is how many accounts the dashboard requests.
const DashboardAccounts = 15

// Impl implements Service on top of the backend client and the query cache.
type Impl struct {
	backend Backend
	cache   *query.Cache
	audit   AuditStore
	bus     *events.Bus
	logger  *slog.Logger
	now     func() time.Time
}

// Config holds the dependencies of Impl. Audit and Bus are optional.
type Config struct {
	Backend Backend
	Cache   *query.Cache
	Audit   AuditStore
	Bus     *events.Bus
	Logger  *slog.Logger
}

// New creates the console service.
func New(cfg Config) *Impl {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = query.New(nil, query.WithBus(cfg.Bus), query.WithLogger(logger))
	}
	return &Impl{
		backend: cfg.Backend,
		cache:   cache,
		audit:   cfg.Audit,
		bus:     cfg.Bus,
		logger:  logger,
		now:     time.Now,
	}
}

var _ Service = (*Impl)(nil)

// --- Account Queries ---

func (s *Impl) ListAccounts(ctx context.Context, q backend.AccountQuery) (*models.Page[models.Account], error) {
	key := query.NewKey(query.ResourceAccounts, q.Values())
	return query.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.Page[models.Account], error) {
		return s.backend.ListAccounts(ctx, q)
	})
}

// GetAccount returns nil without error when the account does not exist.
func (s *Impl) GetAccount(ctx context.Context, id int64) (*models.AccountDetails, error) {
	return query.Fetch(ctx, s.cache, query.ByID(query.ResourceAccount, id), func(ctx context.Context) (*models.AccountDetails, error) {
		return s.backend.GetAccount(ctx, id)
	})
}

func (s *Impl) GetRiskStatus(ctx context.Context, id int64) (*models.RiskData, error) {
	return query.Fetch(ctx, s.cache, query.ByID(query.ResourceAccountRisk, id), func(ctx context.Context) (*models.RiskData, error) {
		return s.backend.GetRiskStatus(ctx, id)
	})
}

func (s *Impl) AccountIncidents(ctx context.Context, id int64) (*models.Page[models.Incident], error) {
	return query.Fetch(ctx, s.cache, query.ByID(query.ResourceAccountIncidents, id), func(ctx context.Context) (*models.Page[models.Incident], error) {
		return s.backend.AccountIncidents(ctx, id)
	})
}

func (s *Impl) ListTrades(ctx context.Context, q backend.TradeQuery) (*models.Page[models.Trade], error) {
	key := query.NewKey(query.ResourceTrades, q.Values())
	return query.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.Page[models.Trade], error) {
		return s.backend.ListTrades(ctx, q)
	})
}

// --- Account Commands ---

func (s *Impl) EnableTrading(ctx context.Context, actor Actor, id int64) (*models.Account, error) {
	return s.setTrading(ctx, actor, id, true)
}

func (s *Impl) DisableTrading(ctx context.Context, actor Actor, id int64) (*models.Account, error) {
	return s.setTrading(ctx, actor, id, false)
}

func (s *Impl) setTrading(ctx context.Context, actor Actor, id int64, enable bool) (*models.Account, error) {
	action, call := "account.disable-trading", s.backend.DisableTrading
	if enable {
		action, call = "account.enable-trading", s.backend.EnableTrading
	}
	var account *models.Account
	err := s.mutate(ctx, actor, action, fmt.Sprintf("account:%d", id), func(ctx context.Context) error {
		res, err := call(ctx, id)
		if err != nil {
			return err
		}
		if res != nil {
			account = &res.Data
		}
		return nil
	}, tradingChangedKeys(id)...)
	return account, err
}

// --- Rule Queries ---

func (s *Impl) ListRules(ctx context.Context, q backend.RuleQuery) (*models.Page[models.RiskRule], error) {
	key := query.NewKey(query.ResourceRules, q.Values())
	return query.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.Page[models.RiskRule], error) {
		return s.backend.ListRules(ctx, q)
	})
}

// GetRule returns nil without error when the rule does not exist.
func (s *Impl) GetRule(ctx context.Context, id int64) (*models.RiskRule, error) {
	return query.Fetch(ctx, s.cache, query.ByID(query.ResourceRule, id), func(ctx context.Context) (*models.RiskRule, error) {
		return s.backend.GetRule(ctx, id)
	})
}

// RuleActions returns the rule's actions ordered as the backend stores them.
func (s *Impl) RuleActions(ctx context.Context, id int64) ([]models.RuleAction, error) {
	return query.Fetch(ctx, s.cache, query.ByID(query.ResourceRuleActions, id), func(ctx context.Context) ([]models.RuleAction, error) {
		rule, err := s.backend.GetRule(ctx, id)
		if err != nil || rule == nil {
			return nil, err
		}
		return rule.Actions, nil
	})
}

func (s *Impl) RuleTypesInfo(ctx context.Context) (*models.RuleTypesInfo, error) {
	return query.Fetch(ctx, s.cache, query.Key{Resource: query.ResourceRuleTypesInfo}, s.backend.GetRuleTypesInfo)
}

func (s *Impl) RuleIncidents(ctx context.Context, id int64) (*models.Page[models.Incident], error) {
	return query.Fetch(ctx, s.cache, query.ByID(query.ResourceRuleIncidents, id), func(ctx context.Context) (*models.Page[models.Incident], error) {
		return s.backend.RuleIncidents(ctx, id)
	})
}

// --- Rule Commands ---

func (s *Impl) CreateRule(ctx context.Context, actor Actor, sub models.RuleSubmission) (*models.RiskRule, error) {
	var rule *models.RiskRule
	err := s.mutate(ctx, actor, "rule.create", "risk-rules", func(ctx context.Context) error {
		res, err := s.backend.CreateRule(ctx, sub)
		if err != nil {
			return err
		}
		if res != nil {
			rule = &res.Data
		}
		return nil
	}, ruleCreatedKeys()...)
	return rule, err
}

func (s *Impl) UpdateRule(ctx context.Context, actor Actor, id int64, sub models.RuleSubmission) (*models.RiskRule, error) {
	var rule *models.RiskRule
	err := s.mutate(ctx, actor, "rule.update", fmt.Sprintf("risk-rule:%d", id), func(ctx context.Context) error {
		res, err := s.backend.UpdateRule(ctx, id, sub)
		if err != nil {
			return err
		}
		if res != nil {
			rule = &res.Data
		}
		return nil
	}, ruleChangedKeys(id)...)
	return rule, err
}

func (s *Impl) DeleteRule(ctx context.Context, actor Actor, id int64) error {
	return s.mutate(ctx, actor, "rule.delete", fmt.Sprintf("risk-rule:%d", id), func(ctx context.Context) error {
		return s.backend.DeleteRule(ctx, id)
	}, ruleDeletedKeys(id)...)
}

func (s *Impl) ToggleRule(ctx context.Context, actor Actor, id int64) error {
	return s.mutate(ctx, actor, "rule.toggle", fmt.Sprintf("risk-rule:%d", id), func(ctx context.Context) error {
		return s.backend.ToggleRuleActive(ctx, id)
	}, ruleChangedKeys(id)...)
}

// AssignActions replaces the rule's whole action list.
func (s *Impl) AssignActions(ctx context.Context, actor Actor, id int64, actions []models.ActionSpec) error {
	return s.mutate(ctx, actor, "rule.assign-actions", fmt.Sprintf("risk-rule:%d", id), func(ctx context.Context) error {
		_, err := s.backend.AssignActions(ctx, id, actions)
		return err
	}, actionsAssignedKeys(id)...)
}

// AppendAction rebuilds the action list from the backend's current actions,
// never the cached copy, and replaces it with build's result.
func (s *Impl) AppendAction(ctx context.Context, actor Actor, id int64, build func([]models.RuleAction) []models.ActionSpec) error {
	return s.mutate(ctx, actor, "rule.assign-actions", fmt.Sprintf("risk-rule:%d", id), func(ctx context.Context) error {
		rule, err := s.backend.GetRule(ctx, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return fmt.Errorf("rule %d not found", id)
		}
		_, err = s.backend.AssignActions(ctx, id, build(rule.Actions))
		return err
	}, actionsAssignedKeys(id)...)
}

// --- Incidents ---

func (s *Impl) ListIncidents(ctx context.Context, q backend.IncidentQuery) (*models.Page[models.Incident], error) {
	key := query.NewKey(query.ResourceIncidents, q.Values())
	return query.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.Page[models.Incident], error) {
		return s.backend.ListIncidents(ctx, q)
	})
}

func (s *Impl) IncidentStatistics(ctx context.Context, q backend.StatsQuery) (*models.IncidentStatistics, error) {
	key := query.NewKey(query.ResourceIncidentStats, q.Values())
	return query.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.IncidentStatistics, error) {
		return s.backend.GetIncidentStatistics(ctx, q)
	})
}

func (s *Impl) ResolveIncident(ctx context.Context, actor Actor, id int64) error {
	return s.mutate(ctx, actor, "incident.resolve", fmt.Sprintf("incident:%d", id), func(ctx context.Context) error {
		_, err := s.backend.ResolveIncident(ctx, id)
		return err
	}, incidentResolvedKeys()...)
}

// --- Aggregates ---

// Dashboard loads accounts, incident statistics and rules concurrently.
func (s *Impl) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := s.ListAccounts(gctx, backend.AccountQuery{Page: 1, PerPage: DashboardAccounts})
		if err != nil {
			return fmt.Errorf("accounts: %w", err)
		}
		d.Accounts = page
		return nil
	})
	g.Go(func() error {
		stats, err := s.IncidentStatistics(gctx, backend.StatsQuery{})
		if err != nil {
			return fmt.Errorf("incident statistics: %w", err)
		}
		d.Stats = stats
		return nil
	})
	g.Go(func() error {
		page, err := s.ListRules(gctx, backend.RuleQuery{Page: 1})
		if err != nil {
			return fmt.Errorf("rules: %w", err)
		}
		d.Rules = page
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// AuditLog returns an empty trail when no audit store is configured.
func (s *Impl) AuditLog(ctx context.Context, f db.AuditFilter) ([]db.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ListAudit(ctx, f)
}

func (s *Impl) CacheStats(ctx context.Context) (query.Stats, error) {
	return s.cache.Stats(ctx)
}

// --- Helpers ---

// mutate runs call, invalidates keys on success and records the outcome.
// Failed mutations leave the cache untouched.
func (s *Impl) mutate(ctx context.Context, actor Actor, action, target string, call func(context.Context) error, keys ...query.Key) error {
	err := call(ctx)
	if err == nil {
		s.cache.Invalidate(ctx, keys...)
	}
	s.record(ctx, actor, action, target, err)
	if err != nil {
		return fmt.Errorf("%s %s: %w", action, target, err)
	}
	return nil
}

func (s *Impl) record(ctx context.Context, actor Actor, action, target string, err error) {
	now := s.now().UTC()
	entry := db.AuditEntry{
		ID:        uuid.NewString(),
		Operator:  actor.Operator,
		Action:    action,
		Target:    target,
		Outcome:   db.OutcomeOK,
		RequestID: actor.RequestID,
		CreatedAt: now,
	}
	if err != nil {
		entry.Outcome = db.OutcomeError
		entry.Detail = err.Error()
		s.logger.Warn("mutation failed", "action", action, "target", target, "operator", actor.Operator, "status", backend.StatusCode(err), "error", err)
	} else {
		s.logger.Info("mutation applied", "action", action, "target", target, "operator", actor.Operator)
	}

	if s.audit != nil {
		if aErr := s.audit.InsertAudit(context.WithoutCancel(ctx), entry); aErr != nil {
			s.logger.Error("audit write failed", "action", action, "error", aErr)
		}
	}

	s.bus.Publish(events.EventMutation, events.Mutation{
		Type:     events.EventMutation,
		Action:   action,
		Target:   target,
		Operator: actor.Operator,
		OK:       err == nil,
		Error:    entry.Detail,
		At:       now,
	})
}

