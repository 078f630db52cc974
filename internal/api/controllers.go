package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"risk-console/pkg/db"
)

type auditQuery struct {
	Operator string `form:"operator"`
	Action   string `form:"action"`
	Limit    int    `form:"limit"`
}

func (q *auditQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getCacheStats(c *gin.Context) {
	stats, err := s.Console.CacheStats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getDashboard(c *gin.Context) {
	d, err := s.Console.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusBadGateway, "BACKEND_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) getAudit(c *gin.Context) {
	var q auditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	q.normalize()
	entries, err := s.Console.AuditLog(c.Request.Context(), db.AuditFilter{
		Operator: q.Operator,
		Action:   q.Action,
		Limit:    q.Limit,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if entries == nil {
		entries = []db.AuditEntry{}
	}
	c.Header("X-Total-Count", strconv.Itoa(len(entries)))
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) getAlerts(c *gin.Context) {
	alerts := []string{}
	if s.Alerts != nil {
		alerts = append(alerts, s.Alerts.Recent()...)
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
