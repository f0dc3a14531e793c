package effect

import "github.com/kart-io/forecastsim/situation"

// conditionsHold evaluates rule's conditions (empty == always-true)
// against target's current inventory. Missing items are treated as 0.
func (e *Engine) conditionsHold(target string, conditions []situation.InventoryCondition) bool {
	inv := e.state.Inventory(target)
	for _, c := range conditions {
		if !c.Operator.Evaluate(inv[c.ItemName], c.Threshold) {
			return false
		}
	}
	return true
}

// ProcessStepEndRules fires every inventory rule whose conditions hold,
// agent by agent in declaration order and then the environment, each
// rule's effects applied with actor set to the owning agent (or
// "environment"). Each rule gets exactly one linear pass: effects from an
// earlier rule in the same pass are visible to a later rule's condition
// check, but no rule re-evaluates once the pass has moved past it.
func (e *Engine) ProcessStepEndRules() []string {
	var log []string
	for _, agent := range e.sit.Agents {
		for _, rule := range agent.InventoryRules {
			if e.conditionsHold(agent.Name, rule.Conditions) {
				log = append(log, e.ApplyEffects(rule.Effects, agent.Name, nil)...)
			}
		}
	}
	for _, rule := range e.sit.Environment.InventoryRules {
		if e.conditionsHold("environment", rule.Conditions) {
			log = append(log, e.ApplyEffects(rule.Effects, "environment", nil)...)
		}
	}
	return log
}
