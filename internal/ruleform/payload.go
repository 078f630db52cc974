package ruleform

import (
	"strings"

	"risk-console/internal/models"
)

// Submission narrows the form to the backend payload of the selected type.
// Call it only on a form that passed Validate.
func (f Form) Submission() models.RuleSubmission {
	sub := models.RuleSubmission{
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		Severity:    f.Severity,
		IsActive:    f.IsActive,
	}
	if f.Severity == models.SeveritySoft {
		sub.IncidentsBeforeAction = models.IntPtr(f.IncidentsBeforeAction)
	}

	switch f.Type {
	case models.RuleDuration:
		sub.Params = models.DurationParams{MinDurationSeconds: f.MinDurationSeconds}
	case models.RuleVolume:
		sub.Params = models.VolumeParams{MinFactor: f.MinFactor, MaxFactor: f.MaxFactor, LookbackTrades: f.LookbackTrades}
	case models.RuleOpenTrades:
		p := models.OpenTradesParams{TimeWindowMinutes: f.TimeWindowMinutes}
		if f.MinOpenTrades != nil && *f.MinOpenTrades != 0 {
			p.MinOpenTrades = models.IntPtr(*f.MinOpenTrades)
		}
		if f.MaxOpenTrades != nil {
			p.MaxOpenTrades = models.IntPtr(*f.MaxOpenTrades)
		}
		sub.Params = p
	}
	return sub
}
