package console

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"risk-console/internal/backend"
	"risk-console/internal/backend/backendtest"
	"risk-console/internal/events"
	"risk-console/internal/models"
	"risk-console/internal/query"
	"risk-console/pkg/db"
)

type fixture struct {
	svc     *Impl
	fake    *backendtest.Server
	queries *db.Queries
	bus     *events.Bus
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fake := backendtest.New(t)
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := events.NewBus()
	client := backend.New(fake.URL, fake.APIKey)
	svc := New(Config{
		Backend: client,
		Cache:   query.New(nil, query.WithBus(bus)),
		Audit:   database.Queries(),
		Bus:     bus,
	})
	return fixture{svc: svc, fake: fake, queries: database.Queries(), bus: bus}
}

var operator = Actor{Operator: "ana", RequestID: "req-1"}

func TestReadsAreCachedPerKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.ListAccounts(ctx, backend.AccountQuery{Page: 1, PerPage: 15}); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.fake.Calls("GET /accounts"); n != 1 {
		t.Fatalf("identical keys should share one request, got %d", n)
	}

	page, err := f.svc.ListAccounts(ctx, backend.AccountQuery{Page: 1, PerPage: 15, Status: "inactive"})
	if err != nil {
		t.Fatal(err)
	}
	if n := f.fake.Calls("GET /accounts"); n != 2 {
		t.Fatalf("a filter change forms a new key, got %d requests", n)
	}
	if page.Total != 1 || page.Data[0].Login != 2001 {
		t.Fatalf("server-side filter not applied: %+v", page)
	}
}

func TestGetAccountNotFoundIsNotAnError(t *testing.T) {
	f := newFixture(t)
	acc, err := f.svc.GetAccount(context.Background(), 99)
	if err != nil || acc != nil {
		t.Fatalf("expected (nil, nil), got %+v, %v", acc, err)
	}
}

func TestDisableTradingRefreshesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.svc.GetAccount(ctx, 1)
	if err != nil || !acc.TradingStatus.Enabled() {
		t.Fatalf("seed account should have trading enabled: %+v %v", acc, err)
	}
	if _, err := f.svc.GetRiskStatus(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ListAccounts(ctx, backend.AccountQuery{Page: 1}); err != nil {
		t.Fatal(err)
	}

	updated, err := f.svc.DisableTrading(ctx, operator, 1)
	if err != nil {
		t.Fatalf("disable trading: %v", err)
	}
	if updated == nil || updated.TradingStatus.Enabled() {
		t.Fatalf("mutation result should carry the new state: %+v", updated)
	}

	acc, err = f.svc.GetAccount(ctx, 1)
	if err != nil || acc.TradingStatus.Enabled() {
		t.Fatalf("account detail should be refetched after disable: %+v %v", acc, err)
	}
	if n := f.fake.Calls("GET /accounts/{id}"); n != 2 {
		t.Fatalf("expected detail refetch, got %d requests", n)
	}
	risk, _ := f.svc.GetRiskStatus(ctx, 1)
	if risk.TradingStatus.Enabled() || f.fake.Calls("GET /accounts/{id}/risk-status") != 2 {
		t.Fatalf("risk status should be refetched")
	}
	if _, err := f.svc.ListAccounts(ctx, backend.AccountQuery{Page: 1}); err != nil || f.fake.Calls("GET /accounts") != 2 {
		t.Fatalf("account list should be refetched")
	}
}

func TestRuleMutationsInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func() error
		listHits int
		ruleHits int
	}{
		{
			name:     "toggle drops list and detail",
			mutate:   func() error { return f.svc.ToggleRule(ctx, operator, 1) },
			listHits: 2, ruleHits: 2,
		},
		{
			name: "create drops list only",
			mutate: func() error {
				_, err := f.svc.CreateRule(ctx, operator, models.RuleSubmission{
					Name: "Hedging", Severity: models.SeverityHard, IsActive: true,
					Params: models.OpenTradesParams{TimeWindowMinutes: 60, MaxOpenTrades: models.IntPtr(10)},
				})
				return err
			},
			listHits: 2, ruleHits: 1,
		},
		{
			name:     "delete keeps other rule details",
			mutate:   func() error { return f.svc.DeleteRule(ctx, operator, 2) },
			listHits: 2, ruleHits: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.svc.cache = query.New(nil)
			listBefore, ruleBefore := f.fake.Calls("GET /rules"), f.fake.Calls("GET /rules/{id}")

			f.svc.ListRules(ctx, backend.RuleQuery{Page: 1})
			f.svc.GetRule(ctx, 1)
			if err := tt.mutate(); err != nil {
				t.Fatalf("mutation: %v", err)
			}
			f.svc.ListRules(ctx, backend.RuleQuery{Page: 1})
			f.svc.GetRule(ctx, 1)

			if got := f.fake.Calls("GET /rules") - listBefore; got != tt.listHits {
				t.Errorf("list requests = %d, want %d", got, tt.listHits)
			}
			if got := f.fake.Calls("GET /rules/{id}") - ruleBefore; got != tt.ruleHits {
				t.Errorf("detail requests = %d, want %d", got, tt.ruleHits)
			}
		})
	}
}

func TestDeleteRuleDropsItsDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if rule, err := f.svc.GetRule(ctx, 2); err != nil || rule == nil {
		t.Fatalf("seed rule: %+v %v", rule, err)
	}
	f.svc.RuleActions(ctx, 2)
	f.svc.RuleIncidents(ctx, 2)
	incidentsBefore := f.fake.Calls("GET /risk-rules/{id}/incidents")

	if err := f.svc.DeleteRule(ctx, operator, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rule, err := f.svc.GetRule(ctx, 2)
	if err != nil || rule != nil {
		t.Fatalf("deleted rule still served: %+v %v", rule, err)
	}
	if actions, err := f.svc.RuleActions(ctx, 2); err != nil || len(actions) != 0 {
		t.Fatalf("deleted rule actions still served: %+v %v", actions, err)
	}
	f.svc.RuleIncidents(ctx, 2)
	if n := f.fake.Calls("GET /risk-rules/{id}/incidents") - incidentsBefore; n != 1 {
		t.Fatalf("rule incidents should be refetched, got %d requests", n)
	}
}

func TestAssignActionsRefreshesRuleActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	actions, err := f.svc.RuleActions(ctx, 2)
	if err != nil || len(actions) != 1 {
		t.Fatalf("seed actions: %+v %v", actions, err)
	}
	specs := []models.ActionSpec{
		actions[0].Spec(),
		{Type: models.ActionDisableTrading, Config: models.DisableConfig{Reason: "Incumplimiento de regla"}, Order: 2},
	}
	if err := f.svc.AssignActions(ctx, operator, 2, specs); err != nil {
		t.Fatalf("assign: %v", err)
	}

	var body struct {
		Actions []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(f.fake.LastBody("POST /rules/{id}/actions"), &body); err != nil || len(body.Actions) != 2 {
		t.Fatalf("full list should be sent: %s", f.fake.LastBody("POST /rules/{id}/actions"))
	}

	actions, err = f.svc.RuleActions(ctx, 2)
	if err != nil || len(actions) != 2 || actions[1].Type != models.ActionDisableTrading {
		t.Fatalf("actions should be refetched: %+v %v", actions, err)
	}
	cfg, ok := actions[1].Config.(models.DisableConfig)
	if !ok || cfg.Reason != "Incumplimiento de regla" {
		t.Fatalf("unexpected config %#v", actions[1].Config)
	}
}

func TestAppendActionReadsCurrentList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cached, err := f.svc.RuleActions(ctx, 2)
	if err != nil || len(cached) != 1 {
		t.Fatalf("seed actions: %+v %v", cached, err)
	}

	// Another console instance replaces the list behind this one's cache.
	other := backend.New(f.fake.URL, f.fake.APIKey)
	if _, err := other.AssignActions(ctx, 2, []models.ActionSpec{
		cached[0].Spec(),
		{Type: models.ActionSlack, Config: models.SlackConfig{Channel: "#risk"}, Order: 2},
	}); err != nil {
		t.Fatalf("other instance assign: %v", err)
	}

	var seen []models.RuleAction
	err = f.svc.AppendAction(ctx, operator, 2, func(existing []models.RuleAction) []models.ActionSpec {
		seen = existing
		out := make([]models.ActionSpec, 0, len(existing)+1)
		for _, a := range existing {
			out = append(out, a.Spec())
		}
		return append(out, models.ActionSpec{
			Type:   models.ActionDisableTrading,
			Config: models.DisableConfig{Reason: "Incumplimiento de regla"},
			Order:  len(existing) + 1,
		})
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("built from a stale list of %d actions", len(seen))
	}

	actions, err := f.svc.RuleActions(ctx, 2)
	if err != nil || len(actions) != 3 || actions[1].Type != models.ActionSlack {
		t.Fatalf("the other instance's action was dropped: %+v %v", actions, err)
	}
}

func TestAppendActionMissingRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.AppendAction(ctx, operator, 99, func(existing []models.RuleAction) []models.ActionSpec {
		t.Fatal("build must not run for a missing rule")
		return nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if n := f.fake.Calls("POST /rules/{id}/actions"); n != 0 {
		t.Fatalf("replace reached the backend %d times", n)
	}
}

func TestFailedMutationKeepsCacheAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	feed, unsub := f.bus.Subscribe(4, events.EventMutation, events.EventCacheInvalidated)
	defer unsub()

	f.svc.GetAccount(ctx, 1)
	f.fake.Fail("POST /accounts/{id}/disable-trading", http.StatusInternalServerError)

	if _, err := f.svc.DisableTrading(ctx, operator, 1); err == nil || backend.StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("expected backend 500, got %v", err)
	}
	f.svc.GetAccount(ctx, 1)
	if n := f.fake.Calls("GET /accounts/{id}"); n != 1 {
		t.Fatalf("failed mutation must not invalidate, got %d detail requests", n)
	}

	ev, ok := (<-feed).(events.Mutation)
	if !ok || ev.OK || ev.Action != "account.disable-trading" || ev.Operator != "ana" {
		t.Fatalf("unexpected event %+v", ev)
	}

	entries, err := f.queries.ListAudit(ctx, db.AuditFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Outcome != db.OutcomeError || entries[0].Target != "account:1" || entries[0].RequestID != "req-1" {
		t.Fatalf("unexpected audit trail %+v", entries)
	}
}

func TestResolveIncidentDropsIncidentViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.ListIncidents(ctx, backend.IncidentQuery{Page: 1, PerPage: 10})
	f.svc.IncidentStatistics(ctx, backend.StatsQuery{})
	f.svc.AccountIncidents(ctx, 1)
	f.svc.RuleIncidents(ctx, 1)

	if err := f.svc.ResolveIncident(ctx, operator, 2); err != nil {
		t.Fatal(err)
	}
	stats, err := f.svc.CacheStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Keys) != 0 {
		t.Fatalf("incident views should be dropped, remaining %v", stats.Keys)
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Dashboard(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d.Accounts.Total != 3 || d.Stats.Total != 3 || d.Stats.BySeverity.Hard != 2 || d.Rules.Total != 2 {
		t.Fatalf("unexpected dashboard %+v %+v %+v", d.Accounts, d.Stats, d.Rules)
	}

	f.fake.Fail("GET /incidents/statistics", http.StatusBadGateway)
	f.svc.cache = query.New(nil)
	if _, err := f.svc.Dashboard(context.Background()); err == nil {
		t.Fatal("dashboard should fail when one source fails")
	}
}
