package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"risk-console/internal/views"
	"risk-console/pkg/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageNames are the templates rendered inside the shared layout.
var pageNames = []string{
	"login", "dashboard", "accounts", "account", "rules", "rule", "rule_form", "incidents", "audit", "error",
}

type pageSet map[string]*template.Template

var funcs = template.FuncMap{
	"t": func(key string, args ...any) string {
		if len(args) == 0 {
			return i18n.Get(key)
		}
		return i18n.Getf(key, args...)
	},
	"price":             views.FormatPrice,
	"nullPrice":         views.FormatNullPrice,
	"date":              views.FormatDate,
	"time":              views.FormatTime,
	"shortTime":         views.FormatShortTime,
	"datetime":          views.FormatDateTime,
	"toggleLabel":       views.ToggleLabel,
	"toggleBadge":       views.ToggleBadge,
	"activeLabel":       views.ActiveLabel,
	"riskClass":         views.RiskClass,
	"severityBadge":     views.SeverityBadge,
	"severityLabel":     views.SeverityLabel,
	"tradeTypeBadge":    views.TradeTypeBadge,
	"tradeTypeLabel":    views.TradeTypeLabel,
	"tradeStatusLabel":  views.TradeStatusLabel,
	"priceDelta":        views.NewPriceDelta,
	"actionLabel":       views.ActionLabel,
	"actionDescription": views.ActionDescription,
	"ruleParams":        views.RuleParamsSummary,
	"list": func(v ...any) []any { return v },
	"emptyState": func(msg string, filtering bool, clearURL string) emptyView {
		return emptyView{Message: msg, Filtering: filtering, ClearURL: clearURL}
	},
	"optInt": func(p *int) string {
		if p == nil {
			return ""
		}
		return fmt.Sprint(*p)
	},
}

func mustParsePages() pageSet {
	set := make(pageSet, len(pageNames))
	for _, name := range pageNames {
		t := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name+".html"))
		set[name] = t
	}
	return set
}

type emptyView struct {
	Message   string
	Filtering bool
	ClearURL  string
}

// layout is the data every page template receives.
type layout struct {
	Title       string
	Nav         string
	Operator    string
	AuthEnabled bool
	Flash       *flash
	RequestID   string
	Data        any
}

func (s *Server) render(c *gin.Context, status int, page, title string, data any) {
	t, ok := s.pages[page]
	if !ok {
		respondError(c, http.StatusInternalServerError, "UNKNOWN_PAGE", page)
		return
	}
	c.Render(status, render.HTML{
		Template: t,
		Name:     "layout",
		Data: layout{
			Title:       title,
			Nav:         page,
			Operator:    CurrentOperator(c),
			AuthEnabled: s.Options.AuthEnabled,
			Flash:       popFlash(c),
			RequestID:   requestID(c),
			Data:        data,
		},
	})
}

// errorView backs the generic error and not-found panels. RetryURL
// reloads the page that failed.
type errorView struct {
	NotFound bool
	Message  string
	RetryURL string
	BackURL  string
	BackText string
}

func (s *Server) renderLoadError(c *gin.Context, err error, back, backText string) {
	s.Logger.Warn("page load failed", "path", c.Request.URL.Path, "id", shortID(requestID(c)), "error", err)
	s.render(c, http.StatusBadGateway, "error", i18n.M().LoadError, errorView{
		Message:  i18n.M().LoadError,
		RetryURL: c.Request.URL.RequestURI(),
		BackURL:  back,
		BackText: backText,
	})
}

func (s *Server) renderNotFound(c *gin.Context, msg, back, backText string) {
	s.render(c, http.StatusNotFound, "error", msg, errorView{
		NotFound: true,
		Message:  msg,
		BackURL:  back,
		BackText: backText,
	})
}

// --- Flash toasts ---

const flashCookie = "console_flash"

type flash struct {
	Kind    string
	Message string
}

func (f *flash) Class() string {
	if f.Kind == "error" {
		return "alert-error"
	}
	return "alert-success"
}

func setFlash(c *gin.Context, kind, msg string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(c *gin.Context) *flash {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	kind, msg, ok := strings.Cut(raw, "|")
	if !ok {
		return nil
	}
	return &flash{Kind: kind, Message: msg}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}
