package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"risk-console/internal/models"
)

// ListAccounts fetches one page of accounts.
func (c *Client) ListAccounts(ctx context.Context, q AccountQuery) (*models.Page[models.Account], error) {
	var page models.Page[models.Account]
	if err := c.get(ctx, "/accounts", q.Values(), &page); err != nil {
		return nil, err
	}
	page.Normalize(q.Page, q.PerPage)
	return &page, nil
}

// GetAccount fetches an account with its trades and incidents. A nil result
// with a nil error means the account does not exist.
func (c *Client) GetAccount(ctx context.Context, id int64) (*models.AccountDetails, error) {
	var raw json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/accounts/%d", id), nil, &raw); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	raw = unwrapData(raw)
	if isEmptyObject(raw) {
		return nil, nil
	}
	var acc models.AccountDetails
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, fmt.Errorf("decode account %d: %w", id, err)
	}
	if acc.ID == 0 {
		return nil, nil
	}
	return &acc, nil
}

// GetRiskStatus fetches the computed risk summary of an account.
func (c *Client) GetRiskStatus(ctx context.Context, id int64) (*models.RiskData, error) {
	var raw json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/accounts/%d/risk-status", id), nil, &raw); err != nil {
		return nil, err
	}
	raw = unwrapData(raw)
	if isEmptyObject(raw) {
		return nil, nil
	}
	var data models.RiskData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode risk status %d: %w", id, err)
	}
	return &data, nil
}

// EnableTrading turns trading on for an account.
func (c *Client) EnableTrading(ctx context.Context, id int64) (*models.MutationResult[models.Account], error) {
	return c.setTrading(ctx, id, "enable-trading")
}

// DisableTrading turns trading off for an account.
func (c *Client) DisableTrading(ctx context.Context, id int64) (*models.MutationResult[models.Account], error) {
	return c.setTrading(ctx, id, "disable-trading")
}

func (c *Client) setTrading(ctx context.Context, id int64, op string) (*models.MutationResult[models.Account], error) {
	var res models.MutationResult[models.Account]
	if err := c.post(ctx, fmt.Sprintf("/accounts/%d/%s", id, op), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTrades fetches one page of trades.
func (c *Client) ListTrades(ctx context.Context, q TradeQuery) (*models.Page[models.Trade], error) {
	var page models.Page[models.Trade]
	if err := c.get(ctx, "/trades", q.Values(), &page); err != nil {
		return nil, err
	}
	page.Normalize(q.Page, q.PerPage)
	return &page, nil
}
