// Package situation defines the static, declarative blueprint of a
// multi-agent world: items, agents, environment, communication rules, and
// the action/effect catalog agents draw on. Values in this package are
// immutable once loaded — nothing here is mutated during a simulation run.
package situation

// ParamType is the declared type of an action parameter.
type ParamType string

const (
	ParamString    ParamType = "string"
	ParamInt       ParamType = "int"
	ParamFloat     ParamType = "float"
	ParamAgentName ParamType = "agent_name"
	ParamItemName  ParamType = "item_name"
)

// ItemDefinition declares one member of the item keyspace.
type ItemDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tradable    bool   `json:"tradable"`
}

// PersonaItem is one fact about an agent, optionally hidden from everyone
// but the agent itself.
type PersonaItem struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Hidden bool   `json:"hidden"`
}

// ActionParam declares one formal parameter of an ActionDefinition.
type ActionParam struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        ParamType `json:"type"`
}

// ActionDefinition is a named, parameterized bundle of effects agents may
// invoke, either globally (environment.global_actions) or per-agent
// (agent.special_actions).
type ActionDefinition struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  []ActionParam `json:"parameters"`
	Effects     Effects       `json:"effects"`
	AvailableTo AgentSet      `json:"available_to"`
}

// ComparisonOp is the operator used by an InventoryCondition.
type ComparisonOp string

const (
	OpGTE ComparisonOp = ">="
	OpLTE ComparisonOp = "<="
	OpEQ  ComparisonOp = "=="
	OpGT  ComparisonOp = ">"
	OpLT  ComparisonOp = "<"
	OpNEQ ComparisonOp = "!="
)

// Evaluate applies the operator to (actual, threshold).
func (op ComparisonOp) Evaluate(actual, threshold int) bool {
	switch op {
	case OpGTE:
		return actual >= threshold
	case OpLTE:
		return actual <= threshold
	case OpEQ:
		return actual == threshold
	case OpGT:
		return actual > threshold
	case OpLT:
		return actual < threshold
	case OpNEQ:
		return actual != threshold
	default:
		return false
	}
}

// InventoryCondition is one clause of an InventoryRule's guard. An empty
// condition list on the owning rule is always-true.
type InventoryCondition struct {
	ItemName  string       `json:"item_name"`
	Operator  ComparisonOp `json:"operator"`
	Threshold int          `json:"threshold"`
}

// InventoryRule fires its Effects at step end when all Conditions hold
// against the owning agent's (or the environment's) inventory.
type InventoryRule struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Conditions  []InventoryCondition `json:"conditions"`
	Effects     Effects              `json:"effects"`
}

// AgentDefinition is one declared participant.
type AgentDefinition struct {
	Name              string          `json:"name"`
	Persona           []PersonaItem   `json:"persona"`
	StartingInventory map[string]int  `json:"starting_inventory"`
	SpecialActions    []ActionDefinition `json:"special_actions"`
	InventoryRules    []InventoryRule `json:"inventory_rules"`
	AIModel           string          `json:"ai_model"`
}

// Environment is the single shared, non-agent participant in a situation.
type Environment struct {
	Description    string             `json:"description"`
	Inventory      map[string]int     `json:"inventory"`
	GlobalActions  []ActionDefinition `json:"global_actions"`
	InventoryRules []InventoryRule    `json:"inventory_rules"`
}

// Channel is a named group broadcast surface.
type Channel struct {
	Name        string   `json:"name"`
	Members     AgentSet `json:"members"`
	Description string   `json:"description"`
}

// AgentPair is an unordered pair of agent names, used by the DM blacklist.
type AgentPair [2]string

// Equal reports whether p and o name the same unordered pair.
func (p AgentPair) Equal(o AgentPair) bool {
	return (p[0] == o[0] && p[1] == o[1]) || (p[0] == o[1] && p[1] == o[0])
}

// Communication declares the channels and DM restrictions available to
// agents in a situation.
type Communication struct {
	Channels    []Channel   `json:"channels"`
	DMBlacklist []AgentPair `json:"dm_blacklist"`
}

// Blocked reports whether a and b are barred from direct messaging.
func (c Communication) Blocked(a, b string) bool {
	pair := AgentPair{a, b}
	for _, blocked := range c.DMBlacklist {
		if blocked.Equal(pair) {
			return true
		}
	}
	return false
}

// Situation is the static input to a simulation run. It is never mutated
// once loaded.
type Situation struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	RulesText     string           `json:"rules_text"`
	Items         []ItemDefinition `json:"items"`
	Agents        []AgentDefinition `json:"agents"`
	Environment   Environment      `json:"environment"`
	Communication Communication    `json:"communication"`
	MaxSteps      int              `json:"max_steps"`
}

// AgentByName returns the declared agent with the given name, if any.
func (s *Situation) AgentByName(name string) (*AgentDefinition, bool) {
	for i := range s.Agents {
		if s.Agents[i].Name == name {
			return &s.Agents[i], true
		}
	}
	return nil, false
}

// ItemByName returns the declared item with the given name, if any.
func (s *Situation) ItemByName(name string) (*ItemDefinition, bool) {
	for i := range s.Items {
		if s.Items[i].Name == name {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// AgentNames returns every declared agent name, in declaration order.
func (s *Situation) AgentNames() []string {
	names := make([]string, len(s.Agents))
	for i, a := range s.Agents {
		names[i] = a.Name
	}
	return names
}
