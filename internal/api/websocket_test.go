package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "no origin", origin: "", want: true},
		{name: "same host", origin: "http://console.local:8080", want: true},
		{name: "host case differs", origin: "http://CONSOLE.local:8080", want: true},
		{name: "other port", origin: "http://console.local:9090", want: false},
		{name: "foreign site", origin: "https://evil.example", want: false},
		{name: "garbage", origin: "://", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://console.local:8080/ws/events", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := sameOrigin(r); got != tt.want {
				t.Fatalf("sameOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestEventStreamRejectsForeignOrigin(t *testing.T) {
	ts := newTestServer(t, false)
	srv := httptest.NewServer(ts.Router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"

	header := http.Header{"Origin": {"https://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("foreign origin was upgraded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v (%v)", resp, err)
	}

	header = http.Header{"Origin": {srv.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("same origin dial: %v", err)
	}
	conn.Close()
}
