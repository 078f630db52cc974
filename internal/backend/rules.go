package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"risk-console/internal/models"
)

// ListRules fetches one page of risk rules.
func (c *Client) ListRules(ctx context.Context, q RuleQuery) (*models.Page[models.RiskRule], error) {
	var page models.Page[models.RiskRule]
	if err := c.get(ctx, "/rules", q.Values(), &page); err != nil {
		return nil, err
	}
	page.Normalize(q.Page, q.PerPage)
	return &page, nil
}

// GetRule fetches one rule with its actions and incidents. A nil result
// with a nil error means the rule does not exist.
func (c *Client) GetRule(ctx context.Context, id int64) (*models.RiskRule, error) {
	var raw json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/rules/%d", id), nil, &raw); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	raw = unwrapData(raw)
	if isEmptyObject(raw) {
		return nil, nil
	}
	var rule models.RiskRule
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, fmt.Errorf("decode rule %d: %w", id, err)
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

// GetRuleTypesInfo fetches the rule type, severity and action catalogs.
func (c *Client) GetRuleTypesInfo(ctx context.Context) (*models.RuleTypesInfo, error) {
	var info models.RuleTypesInfo
	if err := c.get(ctx, "/rules/types/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateRule creates a rule.
func (c *Client) CreateRule(ctx context.Context, sub models.RuleSubmission) (*models.MutationResult[models.RiskRule], error) {
	var res models.MutationResult[models.RiskRule]
	if err := c.post(ctx, "/rules", sub, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateRule replaces a rule's configuration.
func (c *Client) UpdateRule(ctx context.Context, id int64, sub models.RuleSubmission) (*models.MutationResult[models.RiskRule], error) {
	var res models.MutationResult[models.RiskRule]
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/rules/%d", id), nil, sub, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteRule deletes a rule.
func (c *Client) DeleteRule(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/rules/%d", id), nil, nil, nil)
}

// ToggleRuleActive flips a rule's is_active flag.
func (c *Client) ToggleRuleActive(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/rules/%d/toggle-active", id), nil, nil)
}

// AssignActions replaces the complete, ordered action list of a rule.
func (c *Client) AssignActions(ctx context.Context, id int64, actions []models.ActionSpec) (*models.MutationResult[models.RiskRule], error) {
	if actions == nil {
		actions = []models.ActionSpec{}
	}
	body := struct {
		Actions []models.ActionSpec `json:"actions"`
	}{Actions: actions}

	var res models.MutationResult[models.RiskRule]
	if err := c.post(ctx, fmt.Sprintf("/rules/%d/actions", id), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
