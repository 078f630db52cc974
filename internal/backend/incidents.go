package backend

import (
	"context"
	"fmt"

	"risk-console/internal/models"
)

// ListIncidents fetches one server-filtered page of incidents.
func (c *Client) ListIncidents(ctx context.Context, q IncidentQuery) (*models.Page[models.Incident], error) {
	var page models.Page[models.Incident]
	if err := c.get(ctx, "/incidents", q.Values(), &page); err != nil {
		return nil, err
	}
	page.Normalize(q.Page, q.PerPage)
	return &page, nil
}

// GetIncidentStatistics fetches the dashboard aggregate.
func (c *Client) GetIncidentStatistics(ctx context.Context, q StatsQuery) (*models.IncidentStatistics, error) {
	var stats models.IncidentStatistics
	if err := c.get(ctx, "/incidents/statistics", q.Values(), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ResolveIncident marks an incident as resolved.
func (c *Client) ResolveIncident(ctx context.Context, id int64) (*models.MutationResult[models.Incident], error) {
	var res models.MutationResult[models.Incident]
	if err := c.post(ctx, fmt.Sprintf("/incidents/%d/resolve", id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AccountIncidents lists the incidents of one account.
func (c *Client) AccountIncidents(ctx context.Context, accountID int64) (*models.Page[models.Incident], error) {
	var page models.Page[models.Incident]
	if err := c.get(ctx, fmt.Sprintf("/accounts/%d/incidents", accountID), nil, &page); err != nil {
		return nil, err
	}
	page.Normalize(1, 0)
	return &page, nil
}

// RuleIncidents lists the incidents raised by one rule.
func (c *Client) RuleIncidents(ctx context.Context, ruleID int64) (*models.Page[models.Incident], error) {
	var page models.Page[models.Incident]
	if err := c.get(ctx, fmt.Sprintf("/risk-rules/%d/incidents", ruleID), nil, &page); err != nil {
		return nil, err
	}
	page.Normalize(1, 0)
	return &page, nil
}
