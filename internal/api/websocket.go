package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"risk-console/internal/events"
	"risk-console/internal/session"
	"risk-console/internal/views"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts handshakes without an Origin header (non-browser
// clients) and browser handshakes from the console's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// liveIncidents runs one incidents search session per connection. The read
// loop feeds browser messages into the session; the write loop pushes its
// output.
func (s *Server) liveIncidents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("ws upgrade failed", "path", c.Request.URL.Path, "error", err)
		return
	}
	defer conn.Close()

	s.Metrics.SessionOpened()
	defer s.Metrics.SessionClosed()

	f := views.ParseIncidentFilters(c.Request.URL.Query(), s.Options.IncidentsPageSize)
	sess := session.NewIncidents(c.Request.Context(), s.Console, session.Options{
		Debounce: s.Options.SearchDebounce,
		PerPage:  s.Options.IncidentsPageSize,
		Logger:   s.Logger.With("session", shortID(requestID(c))),
	})
	defer sess.Close()

	go func() {
		defer sess.Close()
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			var in session.Input
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			sess.Handle(in)
		}
	}()

	sess.Start(session.Filters{Search: f.Search, Severity: f.Severity, Page: f.Page, PerPage: f.PerPage})

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case out := <-sess.Out():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(out); err != nil {
				s.Logger.Debug("ws write failed", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sess.Done():
			return
		}
	}
}

// eventStream forwards cache invalidations and mutations as they happen.
func (s *Server) eventStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("ws upgrade failed", "path", c.Request.URL.Path, "error", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.Subscribe(100, events.EventCacheInvalidated, events.EventMutation)
	defer unsub()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-stream:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.Logger.Debug("ws write failed", "error", err)
				return
			}
		case <-closed:
			return
		}
	}
}
