package api

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"risk-console/internal/backend"
	"risk-console/internal/backend/backendtest"
	"risk-console/internal/console"
	"risk-console/internal/events"
	"risk-console/internal/models"
	"risk-console/internal/monitor"
	"risk-console/internal/query"
	"risk-console/pkg/db"
	"risk-console/pkg/logging"
)

type testServer struct {
	*Server
	fake    *backendtest.Server
	queries *db.Queries
}

func newTestServer(t *testing.T, auth bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	fake := backendtest.New(t)
	bus := events.NewBus()
	metrics := monitor.NewConsoleMetrics()
	svc := console.New(console.Config{
		Backend: backend.New(fake.URL, fake.APIKey),
		Cache:   query.New(nil, query.WithBus(bus)),
		Audit:   database.Queries(),
		Bus:     bus,
	})

	opts := Options{Version: "test"}
	if auth {
		opts.AuthEnabled = true
		opts.JWTSecret = "test-secret"
		if err := SeedOperator(context.Background(), database.Queries(), "ana", "StrongPass123!"); err != nil {
			t.Fatalf("SeedOperator: %v", err)
		}
	}
	s := NewServer(Deps{
		Console:   svc,
		Bus:       bus,
		Metrics:   metrics,
		Operators: database.Queries(),
		Alerts:    monitor.NewMemorySink(10),
		Logger:    logging.Discard(),
	}, opts)
	return &testServer{Server: s, fake: fake, queries: database.Queries()}
}

func (ts *testServer) do(t *testing.T, method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func assertContains(t *testing.T, body string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(body, p) {
			t.Fatalf("body missing %q", p)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "test" {
		t.Fatalf("unexpected health %+v", resp)
	}
}

func TestDashboardPage(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	// Seed: 2 of 3 accounts active, incidents 2 HARD and 1 SOFT.
	assertContains(t, rec.Body.String(),
		`id="stats-grid"`,
		`id="active-accounts">2<`,
		"2 HARD · 1 SOFT",
		`id="incident-level">Alta<`,
	)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestAccountsEmptyStateOffersClearFilters(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/accounts?search=9999", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	assertContains(t, body, `id="empty-state"`, "No se encontraron cuentas", `href="/accounts"`, "Limpiar filtros")

	rec = ts.do(t, http.MethodGet, "/accounts", nil)
	assertContains(t, rec.Body.String(), `id="accounts-table"`, "1001", "2001")
	if strings.Contains(rec.Body.String(), `id="empty-state"`) {
		t.Fatal("unfiltered list should not show the empty state")
	}
}

func TestDisableTradingFlipsBadge(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/accounts/1", nil)
	assertContains(t, rec.Body.String(), "Trading: Habilitado")

	rec = ts.do(t, http.MethodPost, "/accounts/1/disable-trading", url.Values{"return_to": {"/accounts/1"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/accounts/1" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	flashC := cookieNamed(rec, flashCookie)
	if flashC == nil {
		t.Fatal("expected a flash cookie")
	}

	rec = ts.do(t, http.MethodGet, "/accounts/1", nil, flashC)
	body := rec.Body.String()
	assertContains(t, body, "Trading: Deshabilitado", `id="toast"`)

	a, _ := ts.fake.Account(1)
	if a.TradingStatus != models.ToggleDisable {
		t.Fatalf("backend account still %s", a.TradingStatus)
	}
}

func TestTradingFailureKeepsState(t *testing.T) {
	ts := newTestServer(t, false)
	ts.fake.Fail("POST /accounts/{id}/disable-trading", http.StatusInternalServerError)

	rec := ts.do(t, http.MethodPost, "/accounts/1/disable-trading", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	flashC := cookieNamed(rec, flashCookie)
	if flashC == nil {
		t.Fatal("expected an error flash")
	}
	rec = ts.do(t, http.MethodGet, "/accounts/1", nil, flashC)
	assertContains(t, rec.Body.String(), "alert-error", "Trading: Habilitado")

	entries, err := ts.queries.ListAudit(context.Background(), db.AuditFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Outcome != db.OutcomeError {
		t.Fatalf("expected one failed audit entry, got %+v", entries)
	}
}

func TestDetailStates(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		fail   string
		status int
		want   []string
	}{
		{
			name:   "account not found",
			path:   "/accounts/99",
			status: http.StatusNotFound,
			want:   []string{`id="not-found"`, "La cuenta con ID 99 no existe"},
		},
		{
			name:   "rule not found",
			path:   "/rules/99",
			status: http.StatusNotFound,
			want:   []string{`id="not-found"`},
		},
		{
			name:   "account load error offers retry",
			path:   "/accounts/1",
			fail:   "GET /accounts/{id}",
			status: http.StatusBadGateway,
			want:   []string{`id="load-error"`, "Reintentar", `href="/accounts/1"`},
		},
		{
			name:   "list load error",
			path:   "/rules",
			fail:   "GET /rules",
			status: http.StatusBadGateway,
			want:   []string{`id="load-error"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			if tt.fail != "" {
				ts.fake.Fail(tt.fail, http.StatusInternalServerError)
			}
			rec := ts.do(t, http.MethodGet, tt.path, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			assertContains(t, rec.Body.String(), tt.want...)
		})
	}
}

func TestListRetryRepeatsRequest(t *testing.T) {
	ts := newTestServer(t, false)
	const uri = "/accounts?search=x&status=active&page=2"
	ts.fake.Fail("GET /accounts", http.StatusInternalServerError)

	rec := ts.do(t, http.MethodGet, uri, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := rec.Body.String()
	assertContains(t, body, `id="load-error"`)

	_, rest, ok := strings.Cut(body, `id="retry" href="`)
	if !ok {
		t.Fatalf("no retry link in:\n%s", body)
	}
	href, _, _ := strings.Cut(rest, `"`)
	href = html.UnescapeString(href)
	if href != uri {
		t.Fatalf("retry href = %q, want %q", href, uri)
	}

	ts.fake.Fail("GET /accounts", 0)
	if rec := ts.do(t, http.MethodGet, href, nil); rec.Code != http.StatusOK {
		t.Fatalf("retry returned %d", rec.Code)
	}

	qs := ts.fake.Queries("GET /accounts")
	if len(qs) != 2 {
		t.Fatalf("expected two backend requests, got %v", qs)
	}
	first, err := url.ParseQuery(qs[0])
	if err != nil {
		t.Fatal(err)
	}
	second, err := url.ParseQuery(qs[1])
	if err != nil {
		t.Fatal(err)
	}
	if first.Encode() != second.Encode() {
		t.Fatalf("retry changed the request: %q vs %q", qs[0], qs[1])
	}
	if first.Get("search") != "x" || first.Get("page") != "2" {
		t.Fatalf("filters not forwarded: %q", qs[0])
	}
}

func TestRuleFormValidation(t *testing.T) {
	tests := []struct {
		name  string
		form  url.Values
		field string
	}{
		{
			name:  "missing name",
			form:  url.Values{"name": {" "}, "type": {"DURATION"}, "severity": {"HARD"}, "min_duration_seconds": {"60"}},
			field: "name",
		},
		{
			name:  "non numeric duration",
			form:  url.Values{"name": {"Scalp"}, "type": {"DURATION"}, "severity": {"HARD"}, "min_duration_seconds": {"abc"}},
			field: "min_duration_seconds",
		},
		{
			name: "volume factors reversed",
			form: url.Values{"name": {"Vol"}, "type": {"VOLUME"}, "severity": {"HARD"},
				"min_factor": {"3"}, "max_factor": {"2"}, "lookback_trades": {"5"}},
			field: "max_factor",
		},
		{
			name:  "soft without threshold",
			form:  url.Values{"name": {"Soft"}, "type": {"DURATION"}, "severity": {"SOFT"}, "min_duration_seconds": {"60"}, "incidents_before_action": {"0"}},
			field: "incidents_before_action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			rec := ts.do(t, http.MethodPost, "/rules", tt.form)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rec.Code)
			}
			assertContains(t, rec.Body.String(), `id="rule-form"`, "field-error")
			if n := ts.fake.Calls("POST /rules"); n != 0 {
				t.Fatalf("invalid form reached the backend %d times", n)
			}
		})
	}
}

func TestCreateRuleRedirectsToDetail(t *testing.T) {
	ts := newTestServer(t, false)
	form := url.Values{
		"name":                 {"Fast close"},
		"description":          {"Under 30s"},
		"type":                 {"DURATION"},
		"severity":             {"HARD"},
		"is_active":            {"1"},
		"min_duration_seconds": {"30"},
	}
	rec := ts.do(t, http.MethodPost, "/rules", form)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/rules/3" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	r, ok := ts.fake.Rule(3)
	if !ok || r.Name != "Fast close" {
		t.Fatalf("rule not created: %+v", r)
	}

	rec = ts.do(t, http.MethodGet, "/rules", nil)
	assertContains(t, rec.Body.String(), "Fast close")
}

func TestCreateRuleBackendFailureKeepsForm(t *testing.T) {
	ts := newTestServer(t, false)
	ts.fake.Fail("POST /rules", http.StatusInternalServerError)

	form := url.Values{"name": {"Keep me"}, "type": {"DURATION"}, "severity": {"HARD"}, "min_duration_seconds": {"30"}}
	rec := ts.do(t, http.MethodPost, "/rules", form)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), `id="form-error"`, `value="Keep me"`)
}

func TestAssignActionAppendsInOrder(t *testing.T) {
	ts := newTestServer(t, false)
	form := url.Values{"action_type": {"DISABLE_TRADING"}, "reason": {"Too many incidents"}}

	rec := ts.do(t, http.MethodPost, "/rules/2/actions", form)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/rules/2?tab=actions" {
		t.Fatalf("unexpected redirect %q", loc)
	}

	var sent struct {
		Actions []models.ActionSpec `json:"actions"`
	}
	if err := json.Unmarshal(ts.fake.LastBody("POST /rules/{id}/actions"), &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(sent.Actions) != 2 {
		t.Fatalf("expected existing + new action, got %d", len(sent.Actions))
	}
	if sent.Actions[0].Type != models.ActionEmail || sent.Actions[0].Order != 1 {
		t.Fatalf("existing action changed: %+v", sent.Actions[0])
	}
	if sent.Actions[1].Type != models.ActionDisableTrading || sent.Actions[1].Order != 2 {
		t.Fatalf("new action misplaced: %+v", sent.Actions[1])
	}

	rec = ts.do(t, http.MethodGet, "/rules/2?tab=actions", nil)
	assertContains(t, rec.Body.String(), "2. ")
}

func TestAssignActionValidation(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/rules/2/actions", url.Values{"action_type": {"EMAIL"}, "email_to": {"not-an-email"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), `id="action-form"`, "alert-error")
	if n := ts.fake.Calls("POST /rules/{id}/actions"); n != 0 {
		t.Fatalf("invalid action reached the backend %d times", n)
	}
}

func TestIncidentsPage(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/incidents?severity=HARD&per_page=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), `id="incidents-table"`, "Con filtros aplicados", "Trade closed after 30s")
	if strings.Contains(rec.Body.String(), "Volume 3x average") {
		t.Fatal("SOFT incident should be filtered out")
	}
	qs := ts.fake.Queries("GET /incidents")
	if len(qs) == 0 || !strings.Contains(qs[0], "per_page=5") {
		t.Fatalf("per_page not forwarded: %v", qs)
	}

	rec = ts.do(t, http.MethodGet, "/incidents?search=nothing-matches", nil)
	assertContains(t, rec.Body.String(), `id="empty-state"`, `href="/incidents?per_page=10"`)
}

func TestResolveIncident(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/incidents/1/resolve", url.Values{"return_to": {"/incidents?page=1"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/incidents?page=1" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if n := ts.fake.Calls("POST /incidents/{id}/resolve"); n != 1 {
		t.Fatalf("expected one resolve call, got %d", n)
	}
}

func TestRedirectIgnoresForeignTargets(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/accounts/1", "/accounts/1"},
		{"https://evil.example", "/rules"},
		{"//evil.example", "/rules"},
		{"", "/rules"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := safeRedirect(tt.target, "/rules"); got != tt.want {
				t.Fatalf("safeRedirect(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestAuthRedirectsAndLogin(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodGet, "/rules", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?next=%2Frules" {
		t.Fatalf("unexpected redirect %q", loc)
	}

	rec = ts.do(t, http.MethodGet, "/api/metrics", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for api, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/login", url.Values{"username": {"ana"}, "password": {"wrong"}, "next": {"/rules"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/login", url.Values{"username": {"ana"}, "password": {"StrongPass123!"}, "next": {"/rules"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/rules" {
		t.Fatalf("login failed: %d %q", rec.Code, rec.Header().Get("Location"))
	}
	session := cookieNamed(rec, sessionCookie)
	if session == nil || session.Value == "" {
		t.Fatal("expected a session cookie")
	}

	rec = ts.do(t, http.MethodGet, "/rules", nil, session)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", rec.Code)
	}
	assertContains(t, rec.Body.String(), "ana")

	rec = ts.do(t, http.MethodPost, "/accounts/2/enable-trading", url.Values{}, session)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	entries, err := ts.queries.ListAudit(context.Background(), db.AuditFilter{Operator: "ana", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Outcome != db.OutcomeOK {
		t.Fatalf("expected mutation audited for ana, got %+v", entries)
	}
}

func TestJSONEndpoints(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodGet, "/accounts", nil)
	ts.do(t, http.MethodGet, "/accounts", nil)

	rec := ts.do(t, http.MethodGet, "/api/cache", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats query.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode cache stats: %v", err)
	}
	if stats.Hits < 1 || len(stats.Keys) == 0 {
		t.Fatalf("expected a warm cache, got %+v", stats)
	}

	rec = ts.do(t, http.MethodGet, "/api/metrics", nil)
	var snap monitor.MetricsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap.PageRequests < 2 {
		t.Fatalf("expected page requests recorded, got %d", snap.PageRequests)
	}

	rec = ts.do(t, http.MethodGet, "/api/audit?limit=9999", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Total-Count") != "0" {
		t.Fatalf("unexpected audit response %d %q", rec.Code, rec.Header().Get("X-Total-Count"))
	}

	rec = ts.do(t, http.MethodGet, "/api/alerts", nil)
	assertContains(t, rec.Body.String(), `"alerts":[]`)
}
