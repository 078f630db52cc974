package ruleform

import (
	"net/mail"
	"net/url"
	"strings"

	"risk-console/internal/models"
	"risk-console/pkg/i18n"
)

// ActionForm is the "add action" form of a rule's actions tab.
type ActionForm struct {
	Type       models.ActionType
	EmailTo    string
	Subject    string
	Channel    string
	WebhookURL string
	Reason     string
}

// NewActionForm starts with an email action and the default disable reason.
func NewActionForm() ActionForm {
	return ActionForm{Type: models.ActionEmail, Reason: i18n.M().DefaultDisableReason}
}

// ParseAction reads the submitted action form.
func ParseAction(v url.Values) ActionForm {
	a := ActionForm{
		Type:       models.ActionType(strings.TrimSpace(v.Get("action_type"))),
		EmailTo:    strings.TrimSpace(v.Get("email_to")),
		Subject:    strings.TrimSpace(v.Get("subject")),
		Channel:    strings.TrimSpace(v.Get("channel")),
		WebhookURL: strings.TrimSpace(v.Get("webhook_url")),
		Reason:     strings.TrimSpace(v.Get("reason")),
	}
	if a.Type == "" {
		a.Type = models.ActionEmail
	}
	return a
}

// Validate checks the config fields the selected type needs.
func (a ActionForm) Validate() *FieldError {
	m := i18n.M()
	switch a.Type {
	case models.ActionEmail:
		if a.EmailTo == "" {
			return fieldErr("email_to", m.EmailRequired)
		}
		if _, err := mail.ParseAddress(a.EmailTo); err != nil {
			return fieldErr("email_to", m.EmailRequired)
		}
	case models.ActionSlack:
		if a.Channel == "" {
			return fieldErr("channel", m.ChannelRequired)
		}
	case models.ActionDisableAccount, models.ActionDisableTrading:
		if a.Reason == "" {
			return fieldErr("reason", m.ReasonRequired)
		}
	default:
		return fieldErr("action_type", m.InvalidActionType)
	}
	return nil
}

// Config builds the typed config of the selected action type.
func (a ActionForm) Config() models.ActionConfig {
	switch a.Type {
	case models.ActionEmail:
		return models.EmailConfig{EmailTo: a.EmailTo, Subject: a.Subject}
	case models.ActionSlack:
		return models.SlackConfig{Channel: a.Channel, WebhookURL: a.WebhookURL}
	case models.ActionDisableAccount, models.ActionDisableTrading:
		return models.DisableConfig{Reason: a.Reason}
	}
	return nil
}

// BuildActionList returns the complete list the backend expects: every
// existing action with its order, followed by the new one at len+1.
func BuildActionList(existing []models.RuleAction, a ActionForm) []models.ActionSpec {
	out := make([]models.ActionSpec, 0, len(existing)+1)
	for _, e := range existing {
		out = append(out, e.Spec())
	}
	return append(out, models.ActionSpec{Type: a.Type, Config: a.Config(), Order: len(existing) + 1})
}
