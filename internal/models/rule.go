package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RuleType selects which parameters a rule carries.
type RuleType string

const (
	RuleDuration   RuleType = "DURATION"
	RuleVolume     RuleType = "VOLUME"
	RuleOpenTrades RuleType = "OPEN_TRADES"
)

// RuleTypes lists the rule types in display order.
var RuleTypes = []RuleType{RuleDuration, RuleVolume, RuleOpenTrades}

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	return t == RuleDuration || t == RuleVolume || t == RuleOpenTrades
}

// Severity is HARD (act on first violation) or SOFT (act after a threshold).
type Severity string

const (
	SeverityHard Severity = "HARD"
	SeveritySoft Severity = "SOFT"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s == SeverityHard || s == SeveritySoft }

// RuleParams is the type-specific configuration of a rule. Implemented by
// DurationParams, VolumeParams and OpenTradesParams only.
type RuleParams interface {
	RuleType() RuleType
	flatten(*ruleColumns)
}

// DurationParams flags trades shorter than MinDurationSeconds.
type DurationParams struct {
	MinDurationSeconds int
}

func (DurationParams) RuleType() RuleType { return RuleDuration }

func (p DurationParams) flatten(c *ruleColumns) {
	c.MinDurationSeconds = &p.MinDurationSeconds
}

// VolumeParams flags trades whose volume falls outside
// [MinFactor, MaxFactor] times the average of the last LookbackTrades.
type VolumeParams struct {
	MinFactor      decimal.Decimal
	MaxFactor      decimal.Decimal
	LookbackTrades int
}

func (VolumeParams) RuleType() RuleType { return RuleVolume }

func (p VolumeParams) flatten(c *ruleColumns) {
	minF, maxF := p.MinFactor, p.MaxFactor
	c.MinFactor = &minF
	c.MaxFactor = &maxF
	c.LookbackTrades = &p.LookbackTrades
}

// OpenTradesParams bounds the number of trades opened within a time window.
// MinOpenTrades and MaxOpenTrades are optional.
type OpenTradesParams struct {
	TimeWindowMinutes int
	MinOpenTrades     *int
	MaxOpenTrades     *int
}

func (OpenTradesParams) RuleType() RuleType { return RuleOpenTrades }

func (p OpenTradesParams) flatten(c *ruleColumns) {
	c.TimeWindowMinutes = &p.TimeWindowMinutes
	c.MinOpenTrades = p.MinOpenTrades
	c.MaxOpenTrades = p.MaxOpenTrades
}

// ruleColumns are the backend's flat, nullable parameter columns.
type ruleColumns struct {
	MinDurationSeconds *int             `json:"min_duration_seconds,omitempty"`
	MinFactor          *decimal.Decimal `json:"min_factor,omitempty"`
	MaxFactor          *decimal.Decimal `json:"max_factor,omitempty"`
	LookbackTrades     *int             `json:"lookback_trades,omitempty"`
	TimeWindowMinutes  *int             `json:"time_window_minutes,omitempty"`
	MinOpenTrades      *int             `json:"min_open_trades,omitempty"`
	MaxOpenTrades      *int             `json:"max_open_trades,omitempty"`
}

func (c ruleColumns) params(t RuleType) (RuleParams, error) {
	switch t {
	case RuleDuration:
		return DurationParams{MinDurationSeconds: deref(c.MinDurationSeconds)}, nil
	case RuleVolume:
		p := VolumeParams{LookbackTrades: deref(c.LookbackTrades)}
		if c.MinFactor != nil {
			p.MinFactor = *c.MinFactor
		}
		if c.MaxFactor != nil {
			p.MaxFactor = *c.MaxFactor
		}
		return p, nil
	case RuleOpenTrades:
		return OpenTradesParams{
			TimeWindowMinutes: deref(c.TimeWindowMinutes),
			MinOpenTrades:     c.MinOpenTrades,
			MaxOpenTrades:     c.MaxOpenTrades,
		}, nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", t)
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// RiskRule is a configurable risk condition.
type RiskRule struct {
	ID                    int64
	Name                  string
	Description           string
	Type                  RuleType
	Severity              Severity
	Params                RuleParams
	IncidentsBeforeAction *int
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Actions               []RuleAction
	Incidents             []Incident
}

type ruleWire struct {
	ID                    int64        `json:"id"`
	Name                  string       `json:"name"`
	Description           *string      `json:"description"`
	Type                  RuleType     `json:"type"`
	Severity              Severity     `json:"severity"`
	IncidentsBeforeAction *int         `json:"incidents_before_action"`
	IsActive              bool         `json:"is_active"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
	Actions               []RuleAction `json:"actions,omitempty"`
	Incidents             []Incident   `json:"incidents,omitempty"`
	ruleColumns
}

// UnmarshalJSON builds Params from the flat columns selected by type.
func (r *RiskRule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = RiskRule{
		ID:                    w.ID,
		Name:                  w.Name,
		Type:                  w.Type,
		Severity:              w.Severity,
		IncidentsBeforeAction: w.IncidentsBeforeAction,
		IsActive:              w.IsActive,
		CreatedAt:             w.CreatedAt,
		UpdatedAt:             w.UpdatedAt,
		Actions:               w.Actions,
		Incidents:             w.Incidents,
	}
	if w.Description != nil {
		r.Description = *w.Description
	}
	if w.Type == "" {
		// Nested rule summaries (e.g. inside an incident) may omit the type.
		return nil
	}
	params, err := w.ruleColumns.params(w.Type)
	if err != nil {
		return err
	}
	r.Params = params
	return nil
}

// MarshalJSON writes the backend's flat representation.
func (r RiskRule) MarshalJSON() ([]byte, error) {
	w := ruleWire{
		ID:                    r.ID,
		Name:                  r.Name,
		Type:                  r.Type,
		Severity:              r.Severity,
		IncidentsBeforeAction: r.IncidentsBeforeAction,
		IsActive:              r.IsActive,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
		Actions:               r.Actions,
		Incidents:             r.Incidents,
	}
	if r.Description != "" {
		desc := r.Description
		w.Description = &desc
	}
	if r.Params != nil {
		r.Params.flatten(&w.ruleColumns)
	}
	return json.Marshal(w)
}

// RuleSubmission is the create/update payload. Only the fields of the
// selected Params variant are sent.
type RuleSubmission struct {
	Name                  string
	Description           string
	Severity              Severity
	IsActive              bool
	IncidentsBeforeAction *int
	Params                RuleParams
}

type submissionWire struct {
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	Type                  RuleType `json:"type"`
	Severity              Severity `json:"severity"`
	IsActive              bool     `json:"is_active"`
	IncidentsBeforeAction *int     `json:"incidents_before_action,omitempty"`
	ruleColumns
}

// MarshalJSON narrows the payload to the selected rule type.
func (s RuleSubmission) MarshalJSON() ([]byte, error) {
	if s.Params == nil {
		return nil, fmt.Errorf("rule submission without params")
	}
	w := submissionWire{
		Name:                  s.Name,
		Description:           s.Description,
		Type:                  s.Params.RuleType(),
		Severity:              s.Severity,
		IsActive:              s.IsActive,
		IncidentsBeforeAction: s.IncidentsBeforeAction,
	}
	s.Params.flatten(&w.ruleColumns)
	return json.Marshal(w)
}

// TypeInfo describes a rule type for display.
type TypeInfo struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// RuleTypesInfo is the catalog served by /rules/types/info.
type RuleTypesInfo struct {
	Types       []RuleType            `json:"types"`
	TypesInfo   map[RuleType]TypeInfo `json:"types_info"`
	Severities  []Severity            `json:"severities"`
	ActionTypes []ActionType          `json:"action_types"`
}

// Label returns the display label of t, falling back to the raw value.
func (i *RuleTypesInfo) Label(t RuleType) string {
	if i != nil {
		if info, ok := i.TypesInfo[t]; ok && info.Label != "" {
			return info.Label
		}
	}
	return string(t)
}
