// Package ruleform holds the risk-rule and action-assignment forms: their
// defaults, parsing of submitted values, validation and backend payloads.
package ruleform

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"risk-console/internal/models"
	"risk-console/pkg/config"
	"risk-console/pkg/i18n"
)

// Form is the state of the create/edit rule dialog. Only the fields of the
// selected Type are validated and submitted.
type Form struct {
	RuleID                int64
	Name                  string
	Description           string
	Type                  models.RuleType
	Severity              models.Severity
	IsActive              bool
	IncidentsBeforeAction int

	MinDurationSeconds int

	MinFactor      decimal.Decimal
	MaxFactor      decimal.Decimal
	LookbackTrades int

	TimeWindowMinutes int
	MinOpenTrades     *int
	MaxOpenTrades     *int
}

// Editing reports whether the form updates an existing rule.
func (f Form) Editing() bool { return f.RuleID > 0 }

// Defaults returns the initial values of a new rule.
func Defaults() Form {
	return Form{
		Type:                  models.RuleDuration,
		Severity:              models.SeveritySoft,
		IsActive:              true,
		IncidentsBeforeAction: 3,
		MinDurationSeconds:    60,
		MinFactor:             decimal.RequireFromString("0.5"),
		MaxFactor:             decimal.RequireFromString("2.0"),
		LookbackTrades:        10,
		TimeWindowMinutes:     60,
		MaxOpenTrades:         models.IntPtr(10),
	}
}

// DefaultsFrom applies the console.yaml overrides on top of Defaults.
func DefaultsFrom(fd *config.FormDefaults) Form {
	f := Defaults()
	if fd == nil {
		return f
	}
	if fd.Type != nil && models.RuleType(*fd.Type).Valid() {
		f.Type = models.RuleType(*fd.Type)
	}
	if fd.Severity != nil && models.Severity(*fd.Severity).Valid() {
		f.Severity = models.Severity(*fd.Severity)
	}
	setInt(&f.IncidentsBeforeAction, fd.IncidentsBeforeAction)
	setInt(&f.MinDurationSeconds, fd.MinDurationSeconds)
	setInt(&f.LookbackTrades, fd.LookbackTrades)
	setInt(&f.TimeWindowMinutes, fd.TimeWindowMinutes)
	if fd.MinFactor != nil {
		f.MinFactor = decimal.NewFromFloat(*fd.MinFactor)
	}
	if fd.MaxFactor != nil {
		f.MaxFactor = decimal.NewFromFloat(*fd.MaxFactor)
	}
	if fd.MaxOpenTrades != nil {
		f.MaxOpenTrades = models.IntPtr(*fd.MaxOpenTrades)
	}
	return f
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// FromRule prefills the form with an existing rule. Zero or missing values
// fall back to defaults; an unset or zero minimum of open trades stays unset.
func FromRule(r *models.RiskRule, defaults Form) Form {
	f := defaults
	if r == nil {
		return f
	}
	f.RuleID = r.ID
	f.Name = r.Name
	f.Description = r.Description
	f.IsActive = r.IsActive
	if r.Type.Valid() {
		f.Type = r.Type
	}
	if r.Severity.Valid() {
		f.Severity = r.Severity
	}
	if r.IncidentsBeforeAction != nil && *r.IncidentsBeforeAction != 0 {
		f.IncidentsBeforeAction = *r.IncidentsBeforeAction
	}

	switch p := r.Params.(type) {
	case models.DurationParams:
		if p.MinDurationSeconds != 0 {
			f.MinDurationSeconds = p.MinDurationSeconds
		}
	case models.VolumeParams:
		if !p.MinFactor.IsZero() {
			f.MinFactor = p.MinFactor
		}
		if !p.MaxFactor.IsZero() {
			f.MaxFactor = p.MaxFactor
		}
		if p.LookbackTrades != 0 {
			f.LookbackTrades = p.LookbackTrades
		}
	case models.OpenTradesParams:
		if p.TimeWindowMinutes != 0 {
			f.TimeWindowMinutes = p.TimeWindowMinutes
		}
		f.MinOpenTrades = nil
		if p.MinOpenTrades != nil && *p.MinOpenTrades != 0 {
			f.MinOpenTrades = models.IntPtr(*p.MinOpenTrades)
		}
		if p.MaxOpenTrades != nil && *p.MaxOpenTrades != 0 {
			f.MaxOpenTrades = models.IntPtr(*p.MaxOpenTrades)
		}
	}
	return f
}

// Parse reads submitted form values on top of base (the defaults or the rule
// being edited). Numeric fields of the selected type that are not numbers
// yield a FieldError; fields of other types keep their base values.
func Parse(v url.Values, base Form) (Form, error) {
	f := base
	f.Name = v.Get("name")
	f.Description = strings.TrimSpace(v.Get("description"))
	f.Type = models.RuleType(strings.TrimSpace(v.Get("type")))
	f.Severity = models.Severity(strings.TrimSpace(v.Get("severity")))
	f.IsActive = parseBool(v.Get("is_active"))

	p := parser{values: v}
	if f.Severity == models.SeveritySoft {
		f.IncidentsBeforeAction = p.int("incidents_before_action")
	}
	switch f.Type {
	case models.RuleDuration:
		f.MinDurationSeconds = p.int("min_duration_seconds")
	case models.RuleVolume:
		f.MinFactor = p.decimal("min_factor")
		f.MaxFactor = p.decimal("max_factor")
		f.LookbackTrades = p.int("lookback_trades")
	case models.RuleOpenTrades:
		f.TimeWindowMinutes = p.int("time_window_minutes")
		f.MinOpenTrades = p.optionalInt("min_open_trades")
		f.MaxOpenTrades = p.optionalInt("max_open_trades")
	}
	if p.err != nil {
		return f, p.err
	}
	return f, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// parser keeps the first conversion error.
type parser struct {
	values url.Values
	err    *FieldError
}

func (p *parser) fail(field string) {
	if p.err == nil {
		p.err = &FieldError{Field: field, Message: i18n.M().InvalidNumber}
	}
}

func (p *parser) int(field string) int {
	s := strings.TrimSpace(p.values.Get(field))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(field)
		return 0
	}
	return n
}

func (p *parser) optionalInt(field string) *int {
	s := strings.TrimSpace(p.values.Get(field))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(field)
		return nil
	}
	return &n
}

func (p *parser) decimal(field string) decimal.Decimal {
	s := strings.TrimSpace(p.values.Get(field))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		p.fail(field)
		return decimal.Zero
	}
	return d
}
