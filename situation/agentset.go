package situation

import (
	"bytes"
	"encoding/json"
)

const everyoneToken = "everyone"

// AgentSet represents the "everyone" | set of agent names union used by
// ActionDefinition.AvailableTo and Channel.Members. On the wire it is
// either the literal string "everyone" or a JSON array of agent names.
type AgentSet struct {
	Everyone bool
	Names    map[string]bool
}

// Everyone returns an AgentSet matching every declared agent.
func Everyone() AgentSet {
	return AgentSet{Everyone: true}
}

// NewAgentSet builds an AgentSet from an explicit list of names.
func NewAgentSet(names ...string) AgentSet {
	set := AgentSet{Names: make(map[string]bool, len(names))}
	for _, n := range names {
		set.Names[n] = true
	}
	return set
}

// Allows reports whether name is permitted by this set.
func (s AgentSet) Allows(name string) bool {
	if s.Everyone {
		return true
	}
	return s.Names[name]
}

// List returns the explicit member names in unspecified order; empty for
// an Everyone set.
func (s AgentSet) List() []string {
	names := make([]string, 0, len(s.Names))
	for n := range s.Names {
		names = append(names, n)
	}
	return names
}

func (s AgentSet) MarshalJSON() ([]byte, error) {
	if s.Everyone {
		return json.Marshal(everyoneToken)
	}
	return json.Marshal(s.List())
}

func (s *AgentSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var token string
		if err := json.Unmarshal(trimmed, &token); err != nil {
			return err
		}
		if token != everyoneToken {
			// Tolerate a single bare agent name written as a string.
			*s = NewAgentSet(token)
			return nil
		}
		*s = Everyone()
		return nil
	}
	var names []string
	if err := json.Unmarshal(trimmed, &names); err != nil {
		return err
	}
	*s = NewAgentSet(names...)
	return nil
}
