package ruleform

import (
	"strings"

	"risk-console/internal/models"
	"risk-console/pkg/i18n"
)

// FieldError is a validation failure attached to one form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// Errors maps a field to its message for template rendering.
func (e *FieldError) Errors() map[string]string {
	if e == nil {
		return nil
	}
	return map[string]string{e.Field: e.Message}
}

func fieldErr(field, msg string) *FieldError {
	return &FieldError{Field: field, Message: msg}
}

// Validate returns the first violated rule, or nil.
func Validate(f Form) *FieldError {
	m := i18n.M()

	if strings.TrimSpace(f.Name) == "" {
		return fieldErr("name", m.NameRequired)
	}
	if !f.Type.Valid() {
		return fieldErr("type", m.InvalidRuleType)
	}
	if !f.Severity.Valid() {
		return fieldErr("severity", m.InvalidSeverity)
	}

	switch f.Type {
	case models.RuleDuration:
		if f.MinDurationSeconds <= 0 {
			return fieldErr("min_duration_seconds", m.MinDurationPositive)
		}
	case models.RuleVolume:
		if !f.MinFactor.IsPositive() {
			return fieldErr("min_factor", m.MinFactorPositive)
		}
		if !f.MaxFactor.IsPositive() {
			return fieldErr("max_factor", m.MaxFactorPositive)
		}
		if f.MinFactor.GreaterThanOrEqual(f.MaxFactor) {
			return fieldErr("max_factor", m.MaxFactorGreater)
		}
		if f.LookbackTrades <= 0 {
			return fieldErr("lookback_trades", m.LookbackPositive)
		}
	case models.RuleOpenTrades:
		if f.TimeWindowMinutes <= 0 {
			return fieldErr("time_window_minutes", m.TimeWindowPositive)
		}
		if f.MaxOpenTrades != nil && *f.MaxOpenTrades <= 0 {
			return fieldErr("max_open_trades", m.MaxOpenTradesPositive)
		}
		if f.MinOpenTrades != nil && *f.MinOpenTrades < 0 {
			return fieldErr("min_open_trades", m.MinOpenTradesNegative)
		}
		if f.MinOpenTrades != nil && f.MaxOpenTrades != nil && *f.MinOpenTrades >= *f.MaxOpenTrades {
			return fieldErr("min_open_trades", m.MinOpenTradesLess)
		}
	}

	if f.Severity == models.SeveritySoft && f.IncidentsBeforeAction < 1 {
		return fieldErr("incidents_before_action", m.IncidentsBeforeActionMin)
	}
	return nil
}
