// Package api serves the operator console: server-rendered pages, mutation
// handlers, live sessions over WebSocket and a small JSON surface.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"risk-console/internal/console"
	"risk-console/internal/events"
	"risk-console/internal/monitor"
	"risk-console/pkg/config"
	"risk-console/pkg/db"
)

// Server wires HTTP endpoints around the console service.
type Server struct {
	Router    *gin.Engine
	Console   console.Service
	Bus       *events.Bus
	Metrics   *monitor.ConsoleMetrics
	Operators *db.Queries
	Alerts    *monitor.MemorySink
	Logger    *slog.Logger
	Options   Options

	pages   pageSet
	limiter *ipLimiter
}

// Options are the page-level settings taken from config.
type Options struct {
	AccountsPageSize  int
	IncidentsPageSize int
	SearchDebounce    time.Duration
	JWTSecret         string
	AuthEnabled       bool
	FormDefaults      *config.FormDefaults
	RuleTypeLabels    map[string]string
	Version           string
}

// OptionsFromConfig maps the loaded configuration onto server options.
func OptionsFromConfig(cfg *config.Config) Options {
	o := Options{
		AccountsPageSize:  cfg.AccountsPageSize,
		IncidentsPageSize: cfg.IncidentsPageSize,
		SearchDebounce:    cfg.SearchDebounce,
		JWTSecret:         cfg.JWTSecret,
		AuthEnabled:       cfg.AuthEnabled(),
	}
	if cfg.Console != nil {
		o.FormDefaults = &cfg.Console.FormDefaults
		o.RuleTypeLabels = cfg.Console.RuleTypeLabels
	}
	return o
}

// Deps are the collaborators of a Server.
type Deps struct {
	Console   console.Service
	Bus       *events.Bus
	Metrics   *monitor.ConsoleMetrics
	Operators *db.Queries
	Alerts    *monitor.MemorySink
	Logger    *slog.Logger
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.AccountsPageSize <= 0 {
		opts.AccountsPageSize = 15
	}
	if opts.IncidentsPageSize <= 0 {
		opts.IncidentsPageSize = 10
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = monitor.NewConsoleMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := gin.New()
	s := &Server{
		Router:    r,
		Console:   deps.Console,
		Bus:       deps.Bus,
		Metrics:   deps.Metrics,
		Operators: deps.Operators,
		Alerts:    deps.Alerts,
		Logger:    deps.Logger,
		Options:   opts,
		pages:     mustParsePages(),
		limiter:   newIPLimiter(20, 50),
	}

	// Middleware order: recovery, request id, logging, rate limit.
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(s.Logger, s.Metrics))
	r.Use(s.limiter.Middleware(s.Logger))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/login", s.loginPage)
	s.Router.POST("/login", s.login)
	s.Router.POST("/logout", s.logout)

	ui := s.Router.Group("")
	ui.Use(s.AuthMiddleware())
	{
		ui.GET("/", s.dashboardPage)

		ui.GET("/accounts", s.accountsPage)
		ui.GET("/accounts/:id", s.accountPage)
		ui.POST("/accounts/:id/enable-trading", s.enableTrading)
		ui.POST("/accounts/:id/disable-trading", s.disableTrading)

		ui.GET("/rules", s.rulesPage)
		ui.GET("/rules/new", s.newRulePage)
		ui.POST("/rules", s.createRule)
		ui.GET("/rules/:id", s.rulePage)
		ui.GET("/rules/:id/edit", s.editRulePage)
		ui.POST("/rules/:id", s.updateRule)
		ui.POST("/rules/:id/delete", s.deleteRule)
		ui.POST("/rules/:id/toggle", s.toggleRule)
		ui.POST("/rules/:id/actions", s.assignAction)

		ui.GET("/incidents", s.incidentsPage)
		ui.POST("/incidents/:id/resolve", s.resolveIncident)

		ui.GET("/audit", s.auditPage)

		ui.GET("/ws/incidents", s.liveIncidents)
		ui.GET("/ws/events", s.eventStream)
	}

	api := s.Router.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:   []string{"X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))
	api.Use(s.AuthMiddleware())
	{
		api.GET("/metrics", s.getMetrics)
		api.GET("/cache", s.getCacheStats)
		api.GET("/dashboard", s.getDashboard)
		api.GET("/audit", s.getAudit)
		api.GET("/alerts", s.getAlerts)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.Options.Version})
}

// Handler exposes the router for http.Server.
func (s *Server) Handler() http.Handler { return s.Router }
