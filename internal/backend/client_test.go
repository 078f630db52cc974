package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"risk-console/internal/models"
)

func newTestBackend(t *testing.T, mux *http.ServeMux) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(mux)
	client := New(srv.URL+"/", "test-key", WithTransport(srv.Client().Transport))
	return client, srv.Close
}

func TestListAccountsSendsFiltersAndKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("per_page") != "15" || q.Get("search") != "1001" || q.Get("status") != "disable" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"current_page":2,"data":[{"id":7,"login":1001,"status":"disable","trading_status":"enable"}],"last_page":3,"per_page":15,"total":31,"from":16,"to":16}`)
	})
	client, done := newTestBackend(t, mux)
	defer done()

	page, err := client.ListAccounts(context.Background(), AccountQuery{Page: 2, PerPage: 15, Search: " 1001 ", Status: "inactive"})
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if page.Total != 31 || len(page.Data) != 1 || page.Data[0].Login != 1001 || page.Data[0].Status.Enabled() {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Account not found"}`)
	})
	mux.HandleFunc("GET /accounts/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	})
	mux.HandleFunc("GET /accounts/6", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":6,"login":2002,"status":"enable","trading_status":"enable","trades":[{"id":1,"type":"BUY","volume":"0.10","open_price":1.1,"close_price":null,"status":"open"}],"incidents":[]}`)
	})
	client, done := newTestBackend(t, mux)
	defer done()

	for _, id := range []int64{404, 5} {
		acc, err := client.GetAccount(context.Background(), id)
		if err != nil || acc != nil {
			t.Fatalf("account %d: expected not found (nil, nil), got %v, %v", id, acc, err)
		}
	}
	acc, err := client.GetAccount(context.Background(), 6)
	if err != nil || acc == nil {
		t.Fatalf("GetAccount(6): %v", err)
	}
	if len(acc.Trades) != 1 || acc.Trades[0].Type != models.TradeBuy {
		t.Fatalf("trades not decoded: %+v", acc.Trades)
	}
}

func TestRiskStatusEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/1/risk-status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"account_id":1,"incidents_by_severity":{"HARD":2,"SOFT":3},"open_trades_count":4,"risk_level":"HIGH"}}`)
	})
	client, done := newTestBackend(t, mux)
	defer done()

	data, err := client.GetRiskStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetRiskStatus: %v", err)
	}
	if data.RiskLevel != models.RiskHigh || data.IncidentsBySeverity.Total() != 5 || data.OpenTradesCount != 4 {
		t.Fatalf("unexpected risk data %+v", data)
	}
}

func TestHTTPErrorCarriesMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rules", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"The name field is required."}`)
	})
	client, done := newTestBackend(t, mux)
	defer done()

	_, err := client.CreateRule(context.Background(), models.RuleSubmission{
		Severity: models.SeverityHard,
		Params:   models.DurationParams{MinDurationSeconds: 60},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if StatusCode(err) != http.StatusUnprocessableEntity || IsNotFound(err) {
		t.Fatalf("unexpected status in %v", err)
	}
	if !strings.Contains(err.Error(), "The name field is required.") {
		t.Fatalf("message missing from %q", err.Error())
	}
}

func TestAssignActionsSendsFullList(t *testing.T) {
	var got struct {
		Actions []json.RawMessage `json:"actions"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rules/9/actions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = io.WriteString(w, `{"message":"ok","data":{"id":9,"type":"DURATION","min_duration_seconds":60}}`)
	})
	client, done := newTestBackend(t, mux)
	defer done()

	res, err := client.AssignActions(context.Background(), 9, []models.ActionSpec{
		{Type: models.ActionEmail, Config: models.EmailConfig{EmailTo: "a@b.c"}, Order: 1},
		{Type: models.ActionDisableTrading, Config: models.DisableConfig{Reason: "x"}, Order: 2},
	})
	if err != nil {
		t.Fatalf("AssignActions: %v", err)
	}
	if res.Data.ID != 9 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(got.Actions) != 2 || !strings.Contains(string(got.Actions[1]), `"order":2`) {
		t.Fatalf("unexpected body %+v", got.Actions)
	}
}

func TestRuleQueryValues(t *testing.T) {
	active := false
	v := RuleQuery{Type: "VOLUME", Severity: "HARD", Active: &active}.Values()
	if v.Get("type") != "VOLUME" || v.Get("severity") != "HARD" || v.Get("is_active") != "0" || v.Has("page") {
		t.Fatalf("unexpected values %v", v)
	}
}

func TestTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /incidents/statistics", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	client := New(srv.URL, "", WithTimeout(50*time.Millisecond), WithTransport(srv.Client().Transport))

	if _, err := client.GetIncidentStatistics(context.Background(), StatsQuery{}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
