package situation

import (
	"encoding/json"
	"fmt"
	"os"

	simerrors "github.com/kart-io/forecastsim/errors"
)

// Load reads and validates a Situation from a JSON file on disk.
func Load(path string) (*Situation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidConfig, "read situation file").
			WithComponent("situation").WithOperation("load").WithContext("path", path)
	}
	return Parse(data)
}

// Parse decodes and validates a Situation from JSON bytes. Configuration
// errors (duplicate agent names, dangling available_to/channel/blacklist
// references, undeclared inventory items) fail fast here rather than
// surfacing as runtime panics later.
func Parse(data []byte) (*Situation, error) {
	var s Situation
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeInvalidConfig, "decode situation JSON").
			WithComponent("situation").WithOperation("parse")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the configuration-error invariants a loaded Situation
// must satisfy. It never mutates s.
func (s *Situation) Validate() error {
	agentNames := make(map[string]bool, len(s.Agents))
	for _, a := range s.Agents {
		if agentNames[a.Name] {
			return simerrors.Newf(simerrors.CodeDuplicateAgent, "duplicate agent name %q", a.Name).
				WithComponent("situation").WithOperation("validate")
		}
		agentNames[a.Name] = true
	}

	itemNames := make(map[string]bool, len(s.Items))
	for _, it := range s.Items {
		itemNames[it.Name] = true
	}

	checkAvailableTo := func(where string, set AgentSet) error {
		if set.Everyone {
			return nil
		}
		for _, n := range set.List() {
			if !agentNames[n] {
				return simerrors.Newf(simerrors.CodeDanglingRef, "%s available_to references unknown agent %q", where, n).
					WithComponent("situation").WithOperation("validate")
			}
		}
		return nil
	}

	for _, act := range s.Environment.GlobalActions {
		if err := checkAvailableTo(fmt.Sprintf("global action %q", act.Name), act.AvailableTo); err != nil {
			return err
		}
	}
	for _, a := range s.Agents {
		for _, act := range a.SpecialActions {
			if err := checkAvailableTo(fmt.Sprintf("agent %q special action %q", a.Name, act.Name), act.AvailableTo); err != nil {
				return err
			}
		}
		for item := range a.StartingInventory {
			if !itemNames[item] {
				return simerrors.Newf(simerrors.CodeUnknownItem, "agent %q starting_inventory references undeclared item %q", a.Name, item).
					WithComponent("situation").WithOperation("validate")
			}
		}
	}
	for item := range s.Environment.Inventory {
		if !itemNames[item] {
			return simerrors.Newf(simerrors.CodeUnknownItem, "environment inventory references undeclared item %q", item).
				WithComponent("situation").WithOperation("validate")
		}
	}

	for _, ch := range s.Communication.Channels {
		if ch.Members.Everyone {
			continue
		}
		for _, n := range ch.Members.List() {
			if !agentNames[n] {
				return simerrors.Newf(simerrors.CodeDanglingRef, "channel %q references unknown agent %q", ch.Name, n).
					WithComponent("situation").WithOperation("validate")
			}
		}
	}
	for _, pair := range s.Communication.DMBlacklist {
		for _, n := range pair {
			if !agentNames[n] {
				return simerrors.Newf(simerrors.CodeDanglingRef, "dm_blacklist references unknown agent %q", n).
					WithComponent("situation").WithOperation("validate")
			}
		}
	}

	if s.MaxSteps <= 0 {
		return simerrors.New(simerrors.CodeInvalidConfig, "max_steps must be positive").
			WithComponent("situation").WithOperation("validate")
	}
	return nil
}

// FindAction resolves an action name for an actor using the two-level
// dispatch table from the design notes: the environment's global_actions
// (filtered by available_to) first, then the agent's special_actions.
// Unknown names return (nil, false) — the caller logs and no-ops.
func (s *Situation) FindAction(actorName, actionName string) (*ActionDefinition, bool) {
	for i := range s.Environment.GlobalActions {
		act := &s.Environment.GlobalActions[i]
		if act.Name == actionName && act.AvailableTo.Allows(actorName) {
			return act, true
		}
	}
	if agent, ok := s.AgentByName(actorName); ok {
		for i := range agent.SpecialActions {
			act := &agent.SpecialActions[i]
			if act.Name == actionName {
				return act, true
			}
		}
	}
	return nil, false
}

// AvailableActions lists every action name actorName is entitled to
// invoke: global actions it has permission for, then its own special
// actions, in that order.
func (s *Situation) AvailableActions(actorName string) []ActionDefinition {
	var out []ActionDefinition
	for _, act := range s.Environment.GlobalActions {
		if act.AvailableTo.Allows(actorName) {
			out = append(out, act)
		}
	}
	if agent, ok := s.AgentByName(actorName); ok {
		out = append(out, agent.SpecialActions...)
	}
	return out
}
