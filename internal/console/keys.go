package console

import "risk-console/internal/query"

// Keys dropped after each mutation. Bare resources drop every cached page
// and per-id entry of that resource.

func ruleCreatedKeys() []query.Key {
	return []query.Key{{Resource: query.ResourceRules}}
}

func ruleDeletedKeys(id int64) []query.Key {
	return []query.Key{
		{Resource: query.ResourceRules},
		query.ByID(query.ResourceRule, id),
		query.ByID(query.ResourceRuleActions, id),
		query.ByID(query.ResourceRuleIncidents, id),
	}
}

func ruleChangedKeys(id int64) []query.Key {
	return []query.Key{{Resource: query.ResourceRules}, query.ByID(query.ResourceRule, id)}
}

func actionsAssignedKeys(id int64) []query.Key {
	return []query.Key{query.ByID(query.ResourceRule, id), query.ByID(query.ResourceRuleActions, id)}
}

func tradingChangedKeys(id int64) []query.Key {
	return []query.Key{
		query.ByID(query.ResourceAccount, id),
		{Resource: query.ResourceAccounts},
		query.ByID(query.ResourceAccountRisk, id),
	}
}

func incidentResolvedKeys() []query.Key {
	return []query.Key{
		{Resource: query.ResourceIncidents},
		{Resource: query.ResourceIncidentStats},
		{Resource: query.ResourceAccountIncidents},
		{Resource: query.ResourceRuleIncidents},
	}
}
