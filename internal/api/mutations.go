package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"risk-console/internal/models"
	"risk-console/internal/ruleform"
	"risk-console/pkg/i18n"
)

// redirectBack follows the submitted return_to when it is a local path.
func redirectBack(c *gin.Context, fallback string) {
	c.Redirect(http.StatusSeeOther, safeRedirect(c.PostForm("return_to"), fallback))
}

func (s *Server) mutationFailed(c *gin.Context, msg string, err error) {
	s.Logger.Warn("mutation failed", "path", c.Request.URL.Path, "id", shortID(requestID(c)), "error", err)
	setFlash(c, "error", msg)
}

// --- Accounts ---

func (s *Server) enableTrading(c *gin.Context)  { s.setTrading(c, true) }
func (s *Server) disableTrading(c *gin.Context) { s.setTrading(c, false) }

func (s *Server) setTrading(c *gin.Context, enable bool) {
	id, ok := pathID(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "invalid account id")
		return
	}
	back := fmt.Sprintf("/accounts/%d", id)
	call, msg := s.Console.DisableTrading, i18n.M().TradingDisabled
	if enable {
		call, msg = s.Console.EnableTrading, i18n.M().TradingEnabled
	}
	if _, err := call(c.Request.Context(), actor(c), id); err != nil {
		s.mutationFailed(c, i18n.M().TradingToggleFailed, err)
	} else {
		setFlash(c, "success", msg)
	}
	redirectBack(c, back)
}

// --- Rules ---

func (s *Server) createRule(c *gin.Context) {
	s.submitRule(c, 0)
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "invalid rule id")
		return
	}
	s.submitRule(c, id)
}

// submitRule validates the form locally; invalid input never reaches the
// backend. Backend failures keep the form open with a general error.
func (s *Server) submitRule(c *gin.Context, id int64) {
	if err := c.Request.ParseForm(); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	base := s.formDefaults()
	base.RuleID = id

	f, err := ruleform.Parse(c.Request.PostForm, base)
	var fe *ruleform.FieldError
	if err != nil {
		if !errors.As(err, &fe) {
			fe = &ruleform.FieldError{Field: "general", Message: err.Error()}
		}
	} else {
		fe = ruleform.Validate(f)
	}
	if fe != nil {
		s.renderRuleForm(c, http.StatusUnprocessableEntity, f, fe, "")
		return
	}

	ctx := c.Request.Context()
	sub := f.Submission()
	if !f.Editing() {
		rule, err := s.Console.CreateRule(ctx, actor(c), sub)
		if err != nil {
			s.Logger.Warn("create rule failed", "id", shortID(requestID(c)), "error", err)
			s.renderRuleForm(c, http.StatusBadGateway, f, nil, i18n.M().RuleCreateFailed)
			return
		}
		setFlash(c, "success", i18n.M().RuleCreated)
		if rule != nil && rule.ID > 0 {
			c.Redirect(http.StatusSeeOther, fmt.Sprintf("/rules/%d", rule.ID))
			return
		}
		c.Redirect(http.StatusSeeOther, "/rules")
		return
	}

	if _, err := s.Console.UpdateRule(ctx, actor(c), id, sub); err != nil {
		s.Logger.Warn("update rule failed", "rule", id, "id", shortID(requestID(c)), "error", err)
		s.renderRuleForm(c, http.StatusBadGateway, f, nil, i18n.M().RuleUpdateFailed)
		return
	}
	setFlash(c, "success", i18n.M().RuleUpdated)
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/rules/%d", id))
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "invalid rule id")
		return
	}
	if err := s.Console.DeleteRule(c.Request.Context(), actor(c), id); err != nil {
		s.mutationFailed(c, i18n.M().RuleDeleteFailed, err)
		redirectBack(c, fmt.Sprintf("/rules/%d", id))
		return
	}
	setFlash(c, "success", i18n.M().RuleDeleted)
	c.Redirect(http.StatusSeeOther, "/rules")
}

func (s *Server) toggleRule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "invalid rule id")
		return
	}
	if err := s.Console.ToggleRule(c.Request.Context(), actor(c), id); err != nil {
		s.mutationFailed(c, i18n.M().RuleToggleFailed, err)
	} else {
		setFlash(c, "success", i18n.M().RuleToggled)
	}
	redirectBack(c, "/rules")
}

// assignAction appends one action: the backend replaces the whole list, so
// every existing action is re-sent with its order.
func (s *Server) assignAction(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "invalid rule id")
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	form := ruleform.ParseAction(c.Request.PostForm)
	if fe := form.Validate(); fe != nil {
		s.renderRule(c, http.StatusUnprocessableEntity, form, fe)
		return
	}

	ctx := c.Request.Context()
	back := fmt.Sprintf("/rules/%d?tab=actions", id)
	build := func(existing []models.RuleAction) []models.ActionSpec {
		return ruleform.BuildActionList(existing, form)
	}
	if err := s.Console.AppendAction(ctx, actor(c), id, build); err != nil {
		s.mutationFailed(c, i18n.M().ActionAddFailed, err)
	} else {
		setFlash(c, "success", i18n.M().ActionAdded)
	}
	c.Redirect(http.StatusSeeOther, back)
}

// --- Incidents ---

func (s *Server) resolveIncident(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "invalid incident id")
		return
	}
	if err := s.Console.ResolveIncident(c.Request.Context(), actor(c), id); err != nil {
		s.mutationFailed(c, i18n.M().IncidentResolveFail, err)
	} else {
		setFlash(c, "success", i18n.M().IncidentResolved)
	}
	redirectBack(c, "/incidents")
}
