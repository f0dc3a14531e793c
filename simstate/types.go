// Package simstate defines SimulationState, the single mutable carrier of
// simulation progress, and the value types (messages, trades, actions) it
// accumulates. A SimulationState is created by the simulator, mutated only
// by the effect engine and the simulator during one step, deep-copied at
// branch points, and emitted verbatim as the final state at run end.
package simstate

import "github.com/kart-io/forecastsim/situation"

// TradeStatus is the lifecycle state of a TradeProposal.
type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeAccepted TradeStatus = "accepted"
	TradeRejected TradeStatus = "rejected"
	TradeExpired  TradeStatus = "expired"
)

// Message is one entry in a SimulationState's message history. A nil
// Channel means the message is a direct message; a non-nil Channel names a
// broadcast surface.
type Message struct {
	Step       int      `json:"step"`
	Sender     string   `json:"sender"`
	Channel    *string  `json:"channel"`
	Recipients []string `json:"recipients"`
	Content    string   `json:"content"`
}

// IsDM reports whether this message is a direct message (Channel == nil).
func (m Message) IsDM() bool { return m.Channel == nil }

// TradeProposal is a pending or resolved trade offer.
type TradeProposal struct {
	ID                string         `json:"id"`
	Proposer          string         `json:"proposer"`
	EligibleAcceptors []string       `json:"eligible_acceptors"`
	Offering          map[string]int `json:"offering"`
	Requesting        map[string]int `json:"requesting"`
	ProposedAtStep    int            `json:"proposed_at_step"`
	ExpiresAtStep     int            `json:"expires_at_step"`
	Status            TradeStatus    `json:"status"`
}

// CanAccept reports whether acceptor is eligible to accept this proposal.
func (t TradeProposal) CanAccept(acceptor string) bool {
	for _, a := range t.EligibleAcceptors {
		if a == acceptor {
			return true
		}
	}
	return false
}

// TradeRecord is one leg of a completed trade; a successful trade appends
// two of these, one per transfer direction.
type TradeRecord struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
	From     string `json:"from_agent"`
	To       string `json:"to_agent"`
	Step     int    `json:"step"`
	TradeID  string `json:"trade_id"`
}

// AgentAction is the parsed, validated decision one agent made in one
// step.
type AgentAction struct {
	AgentName         string                 `json:"agent_name"`
	ActionName        string                 `json:"action_name"`
	Parameters        map[string]string      `json:"parameters"`
	MessagesToSend    []Message              `json:"messages_to_send"`
	TradeProposal     *TradeProposal         `json:"trade_proposal,omitempty"`
	TradeAcceptanceID string                 `json:"trade_acceptance_id,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// NoAction is the safe fallback action substituted whenever an agent's
// turn cannot be resolved (parse failure, LLM error, or an unrecognized
// action name).
func NoAction(agentName string) AgentAction {
	return AgentAction{AgentName: agentName, ActionName: "no_action"}
}

// SimulationState is the single mutable carrier of simulation progress.
type SimulationState struct {
	StepNumber           int                       `json:"step_number"`
	Inventories          map[string]map[string]int `json:"inventories"`
	EnvironmentInventory map[string]int            `json:"environment_inventory"`
	MessageHistory       []Message                 `json:"message_history"`
	PendingTrades        []TradeProposal           `json:"pending_trades"`
	TradeHistory         []TradeRecord             `json:"trade_history"`
	ActionLog            []AgentAction             `json:"action_log"`
}

// New builds a SimulationState at step 0 from a Situation's declared
// starting inventories.
func New(sit *situation.Situation) *SimulationState {
	st := &SimulationState{
		StepNumber:           0,
		Inventories:          make(map[string]map[string]int, len(sit.Agents)),
		EnvironmentInventory: make(map[string]int, len(sit.Environment.Inventory)),
	}
	for _, agent := range sit.Agents {
		inv := make(map[string]int, len(agent.StartingInventory))
		for item, count := range agent.StartingInventory {
			if count > 0 {
				inv[item] = count
			}
		}
		st.Inventories[agent.Name] = inv
	}
	for item, count := range sit.Environment.Inventory {
		if count > 0 {
			st.EnvironmentInventory[item] = count
		}
	}
	return st
}

// Inventory returns the inventory map for target ("environment" or a
// declared agent name), creating an empty one if absent. It never returns
// nil so callers can index it directly.
func (s *SimulationState) Inventory(target string) map[string]int {
	if target == "environment" {
		if s.EnvironmentInventory == nil {
			s.EnvironmentInventory = make(map[string]int)
		}
		return s.EnvironmentInventory
	}
	inv, ok := s.Inventories[target]
	if !ok {
		inv = make(map[string]int)
		s.Inventories[target] = inv
	}
	return inv
}

// ItemCount returns target's held count of item, defaulting to 0.
func (s *SimulationState) ItemCount(target, item string) int {
	return s.Inventory(target)[item]
}

// setItemCount writes count into target's inventory, removing the key
// entirely when count drops to zero so the zero-entries-are-absent
// invariant holds.
func (s *SimulationState) setItemCount(target, item string, count int) {
	if count < 0 {
		count = 0
	}
	inv := s.Inventory(target)
	if count == 0 {
		delete(inv, item)
		return
	}
	inv[item] = count
}

// AddItem adds qty (clamped to a non-negative result) of item to target's
// inventory.
func (s *SimulationState) AddItem(target, item string, qty int) {
	if qty <= 0 {
		return
	}
	s.setItemCount(target, item, s.ItemCount(target, item)+qty)
}

// RemoveItem removes up to qty of item from target's inventory, returning
// the amount actually removed. It never drives the count negative.
func (s *SimulationState) RemoveItem(target, item string, qty int) int {
	if qty <= 0 {
		return 0
	}
	current := s.ItemCount(target, item)
	removed := qty
	if removed > current {
		removed = current
	}
	s.setItemCount(target, item, current-removed)
	return removed
}

// DeepCopy returns a structurally independent clone: mutating the copy
// never affects the original, and vice versa.
func (s *SimulationState) DeepCopy() *SimulationState {
	out := &SimulationState{
		StepNumber:           s.StepNumber,
		Inventories:          make(map[string]map[string]int, len(s.Inventories)),
		EnvironmentInventory: make(map[string]int, len(s.EnvironmentInventory)),
		MessageHistory:       make([]Message, len(s.MessageHistory)),
		PendingTrades:        make([]TradeProposal, len(s.PendingTrades)),
		TradeHistory:         make([]TradeRecord, len(s.TradeHistory)),
		ActionLog:            make([]AgentAction, len(s.ActionLog)),
	}
	for agent, inv := range s.Inventories {
		cp := make(map[string]int, len(inv))
		for item, count := range inv {
			cp[item] = count
		}
		out.Inventories[agent] = cp
	}
	for item, count := range s.EnvironmentInventory {
		out.EnvironmentInventory[item] = count
	}
	copy(out.MessageHistory, s.MessageHistory)
	for i, m := range s.MessageHistory {
		if m.Recipients != nil {
			r := make([]string, len(m.Recipients))
			copy(r, m.Recipients)
			out.MessageHistory[i].Recipients = r
		}
	}
	for i, t := range s.PendingTrades {
		out.PendingTrades[i] = copyTrade(t)
	}
	copy(out.TradeHistory, s.TradeHistory)
	for i, a := range s.ActionLog {
		out.ActionLog[i] = copyAction(a)
	}
	return out
}

func copyTrade(t TradeProposal) TradeProposal {
	cp := t
	if t.EligibleAcceptors != nil {
		cp.EligibleAcceptors = append([]string(nil), t.EligibleAcceptors...)
	}
	if t.Offering != nil {
		cp.Offering = make(map[string]int, len(t.Offering))
		for k, v := range t.Offering {
			cp.Offering[k] = v
		}
	}
	if t.Requesting != nil {
		cp.Requesting = make(map[string]int, len(t.Requesting))
		for k, v := range t.Requesting {
			cp.Requesting[k] = v
		}
	}
	return cp
}

func copyAction(a AgentAction) AgentAction {
	cp := a
	if a.Parameters != nil {
		cp.Parameters = make(map[string]string, len(a.Parameters))
		for k, v := range a.Parameters {
			cp.Parameters[k] = v
		}
	}
	if a.MessagesToSend != nil {
		cp.MessagesToSend = make([]Message, len(a.MessagesToSend))
		copy(cp.MessagesToSend, a.MessagesToSend)
		for i, m := range a.MessagesToSend {
			if m.Recipients != nil {
				r := make([]string, len(m.Recipients))
				copy(r, m.Recipients)
				cp.MessagesToSend[i].Recipients = r
			}
		}
	}
	if a.TradeProposal != nil {
		t := copyTrade(*a.TradeProposal)
		cp.TradeProposal = &t
	}
	if a.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
