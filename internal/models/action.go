package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ActionType selects the shape of an action's config.
type ActionType string

const (
	ActionEmail          ActionType = "EMAIL"
	ActionSlack          ActionType = "SLACK"
	ActionDisableAccount ActionType = "DISABLE_ACCOUNT"
	ActionDisableTrading ActionType = "DISABLE_TRADING"
)

// ActionTypes lists the action types in display order.
var ActionTypes = []ActionType{ActionEmail, ActionSlack, ActionDisableAccount, ActionDisableTrading}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionEmail, ActionSlack, ActionDisableAccount, ActionDisableTrading:
		return true
	}
	return false
}

// ActionConfig is the per-type configuration of an action. Implemented by
// EmailConfig, SlackConfig and DisableConfig only.
type ActionConfig interface {
	actionConfig()
}

// EmailConfig sends an email.
type EmailConfig struct {
	EmailTo string `json:"email_to"`
	Subject string `json:"subject"`
}

// SlackConfig posts to a Slack channel.
type SlackConfig struct {
	Channel    string `json:"channel"`
	WebhookURL string `json:"webhook_url"`
}

// DisableConfig disables the account or its trading.
type DisableConfig struct {
	Reason string `json:"reason"`
}

func (EmailConfig) actionConfig()   {}
func (SlackConfig) actionConfig()   {}
func (DisableConfig) actionConfig() {}

// DecodeActionConfig decodes raw according to t. A null or empty raw value
// yields a nil config.
func DecodeActionConfig(t ActionType, raw json.RawMessage) (ActionConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	switch t {
	case ActionEmail:
		var c EmailConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case ActionSlack:
		var c SlackConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case ActionDisableAccount, ActionDisableTrading:
		var c DisableConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", t)
	}
}

// ActionSpec is one entry of the "replace all actions" payload.
type ActionSpec struct {
	Type   ActionType
	Config ActionConfig
	Order  int
}

type actionSpecWire struct {
	Type   ActionType      `json:"action_type"`
	Config json.RawMessage `json:"config"`
	Order  int             `json:"order"`
}

func (a ActionSpec) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionSpecWire{Type: a.Type, Config: cfg, Order: a.Order})
}

func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var w actionSpecWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	cfg, err := DecodeActionConfig(w.Type, w.Config)
	if err != nil {
		return err
	}
	*a = ActionSpec{Type: w.Type, Config: cfg, Order: w.Order}
	return nil
}

// RuleAction is an action attached to a rule; Order is its execution position.
type RuleAction struct {
	ID        int64
	RuleID    int64
	Type      ActionType
	Config    ActionConfig
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Spec strips the persisted identity of the action.
func (a RuleAction) Spec() ActionSpec {
	return ActionSpec{Type: a.Type, Config: a.Config, Order: a.Order}
}

type ruleActionWire struct {
	ID        int64           `json:"id"`
	RuleID    int64           `json:"rule_id"`
	Type      ActionType      `json:"action_type"`
	Config    json.RawMessage `json:"config"`
	Order     int             `json:"order"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a *RuleAction) UnmarshalJSON(data []byte) error {
	var w ruleActionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	cfg, err := DecodeActionConfig(w.Type, w.Config)
	if err != nil {
		return err
	}
	*a = RuleAction{
		ID:        w.ID,
		RuleID:    w.RuleID,
		Type:      w.Type,
		Config:    cfg,
		Order:     w.Order,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	return nil
}

func (a RuleAction) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(a.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleActionWire{
		ID:        a.ID,
		RuleID:    a.RuleID,
		Type:      a.Type,
		Config:    cfg,
		Order:     a.Order,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	})
}
