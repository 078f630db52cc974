package views

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"risk-console/internal/models"
	"risk-console/pkg/i18n"
)

func itoa(n int) string { return strconv.Itoa(n) }

// FormatPrice renders a price the es-ES way: decimal comma, between two and
// five fraction digits, and "." thousands grouping from five integer digits
// on. Zero renders as "-".
func FormatPrice(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	s := d.Abs().StringFixed(5)
	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	for len(frac) < 2 {
		frac += "0"
	}
	if len(intPart) >= 5 {
		intPart = group(intPart)
	}
	out := intPart + "," + frac
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}

// FormatNullPrice renders "-" for a missing price.
func FormatNullPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return FormatPrice(d.Decimal)
}

func group(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatDate is the es-ES short date, e.g. 7/3/2025.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2/1/2006")
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04:05")
}

func FormatShortTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2/1/2006, 15:04:05")
}

// ToggleLabel is "Habilitado" or "Deshabilitado".
func ToggleLabel(t models.Toggle) string {
	if t.Enabled() {
		return i18n.M().Enabled
	}
	return i18n.M().Disabled
}

func ToggleBadge(t models.Toggle) string {
	if t.Enabled() {
		return "badge-success"
	}
	return "badge-error"
}

func ActiveLabel(active bool) string {
	if active {
		return i18n.M().Active
	}
	return i18n.M().Inactive
}

// RiskClass maps a risk level to its panel background.
func RiskClass(l models.RiskLevel) string {
	switch l {
	case models.RiskCritical:
		return "bg-error"
	case models.RiskHigh:
		return "bg-warning"
	case models.RiskMedium:
		return "bg-info"
	case models.RiskLow:
		return "bg-success"
	}
	return "bg-base-300"
}

func SeverityBadge(s models.Severity) string {
	if s == models.SeverityHard {
		return "badge-error"
	}
	return "badge-warning"
}

func SeverityLabel(s models.Severity) string {
	if s == models.SeverityHard {
		return i18n.M().HardRule
	}
	return i18n.M().SoftRule
}

func TradeTypeBadge(t models.TradeType) string {
	if t == models.TradeBuy {
		return "badge-success"
	}
	return "badge-error"
}

func TradeTypeLabel(t models.TradeType) string {
	if t == models.TradeBuy {
		return i18n.M().Buy
	}
	return i18n.M().Sell
}

func TradeStatusLabel(s models.TradeStatus) string {
	if s == models.TradeOpen {
		return i18n.M().Open
	}
	return i18n.M().Closed
}

// PriceDelta is the close minus open arrow shown for closed trades.
type PriceDelta struct {
	Shown bool
	Up    bool
	Text  string
}

func (p PriceDelta) Arrow() string {
	if p.Up {
		return "▲"
	}
	return "▼"
}

func (p PriceDelta) Class() string {
	if p.Up {
		return "text-success"
	}
	return "text-error"
}

func NewPriceDelta(t models.Trade) PriceDelta {
	d, ok := t.PriceDelta()
	if !ok {
		return PriceDelta{}
	}
	return PriceDelta{Shown: true, Up: !d.IsNegative(), Text: FormatPrice(d.Abs())}
}

// ActionLabel names an action type.
func ActionLabel(t models.ActionType) string {
	m := i18n.M()
	switch t {
	case models.ActionEmail:
		return m.ActionEmailLabel
	case models.ActionSlack:
		return m.ActionSlackLabel
	case models.ActionDisableAccount:
		return m.ActionDisableAccountLabel
	case models.ActionDisableTrading:
		return m.ActionDisableTradingLabel
	}
	return string(t)
}

// ActionDescription summarizes an action's config.
func ActionDescription(cfg models.ActionConfig) string {
	m := i18n.M()
	switch c := cfg.(type) {
	case models.EmailConfig:
		if c.EmailTo != "" {
			return i18n.Getf("ActionSendTo", c.EmailTo)
		}
	case models.SlackConfig:
		if c.Channel != "" {
			return i18n.Getf("ActionChannel", c.Channel)
		}
	case models.DisableConfig:
		if c.Reason != "" {
			return i18n.Getf("ActionReason", c.Reason)
		}
	}
	return m.NoConfig
}

// RuleParamsSummary lists a rule's parameters as label/value pairs.
func RuleParamsSummary(p models.RuleParams) [][2]string {
	switch v := p.(type) {
	case models.DurationParams:
		return [][2]string{{"min_duration_seconds", itoa(v.MinDurationSeconds) + "s"}}
	case models.VolumeParams:
		return [][2]string{
			{"min_factor", v.MinFactor.String()},
			{"max_factor", v.MaxFactor.String()},
			{"lookback_trades", itoa(v.LookbackTrades)},
		}
	case models.OpenTradesParams:
		out := [][2]string{{"time_window_minutes", itoa(v.TimeWindowMinutes) + " min"}}
		out = append(out, [2]string{"min_open_trades", optInt(v.MinOpenTrades)})
		out = append(out, [2]string{"max_open_trades", optInt(v.MaxOpenTrades)})
		return out
	}
	return nil
}

func optInt(p *int) string {
	if p == nil {
		return i18n.M().NotSpecified
	}
	return itoa(*p)
}
