// Package models mirrors the entities exposed by the risk backend.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Toggle is the backend's binary state encoding.
type Toggle string

const (
	ToggleEnable  Toggle = "enable"
	ToggleDisable Toggle = "disable"
)

// Enabled reports whether the toggle is on.
func (t Toggle) Enabled() bool { return t == ToggleEnable }

// Account is a trading account with independent account and trading states.
type Account struct {
	ID            int64      `json:"id"`
	Login         int64      `json:"login"`
	Status        Toggle     `json:"status"`
	TradingStatus Toggle     `json:"trading_status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// AccountDetails is an account with its embedded collections.
type AccountDetails struct {
	Account
	Incidents []Incident `json:"incidents"`
	Trades    []Trade    `json:"trades"`
}

// TradeType is the side of a trade.
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

// TradeStatus is open or closed.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// Trade belongs to one account.
type Trade struct {
	ID         int64               `json:"id"`
	AccountID  int64               `json:"account_id"`
	Type       TradeType           `json:"type"`
	Volume     decimal.Decimal     `json:"volume"`
	OpenTime   time.Time           `json:"open_time"`
	CloseTime  *time.Time          `json:"close_time"`
	OpenPrice  decimal.Decimal     `json:"open_price"`
	ClosePrice decimal.NullDecimal `json:"close_price"`
	Status     TradeStatus         `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// PriceDelta returns close_price - open_price for closed trades with both
// prices known. ok is false otherwise.
func (t Trade) PriceDelta() (decimal.Decimal, bool) {
	if t.Status != TradeClosed || !t.ClosePrice.Valid || !t.ClosePrice.Decimal.IsPositive() || !t.OpenPrice.IsPositive() {
		return decimal.Zero, false
	}
	return t.ClosePrice.Decimal.Sub(t.OpenPrice), true
}

// RiskLevel is the backend-computed qualitative risk of an account.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// RiskData is the computed, non-persisted risk summary of one account.
type RiskData struct {
	AccountID           int64          `json:"account_id"`
	Login               int64          `json:"login"`
	Status              Toggle         `json:"status"`
	TradingStatus       Toggle         `json:"trading_status"`
	IncidentsBySeverity SeverityCounts `json:"incidents_by_severity"`
	OpenTradesCount     int            `json:"open_trades_count"`
	ClosedTradesCount   int            `json:"closed_trades_count"`
	RiskLevel           RiskLevel      `json:"risk_level"`
}

// SeverityCounts counts incidents per severity.
type SeverityCounts struct {
	Hard int `json:"HARD"`
	Soft int `json:"SOFT"`
}

// Total is HARD + SOFT.
func (c SeverityCounts) Total() int { return c.Hard + c.Soft }
