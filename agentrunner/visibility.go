// Package agentrunner builds one agent's per-step view of the world,
// prompts an LLM for a decision, and parses the reply into a
// simstate.AgentAction. Visibility filtering here is the sole mechanism by
// which hidden persona information and private messages stay private: no
// free-form string concatenation of hidden state leaks into another
// agent's prompt.
package agentrunner

import (
	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

// VisibleMessages returns every message in state visible to agent: a
// broadcast on a channel that lists agent as a member (or is "everyone"),
// or a DM naming agent among its recipients.
func VisibleMessages(agent string, state *simstate.SimulationState, sit *situation.Situation) []simstate.Message {
	var out []simstate.Message
	for _, m := range state.MessageHistory {
		if messageVisibleTo(agent, m, sit) {
			out = append(out, m)
		}
	}
	return out
}

func messageVisibleTo(agent string, m simstate.Message, sit *situation.Situation) bool {
	if m.IsDM() {
		for _, r := range m.Recipients {
			if r == agent {
				return true
			}
		}
		return false
	}
	for _, ch := range sit.Communication.Channels {
		if ch.Name == *m.Channel {
			return ch.Members.Allows(agent)
		}
	}
	return false
}

// VisibleMetadata returns the persona items of target visible to viewer:
// every non-hidden item, plus hidden items when viewer == target's own
// name.
func VisibleMetadata(viewer string, target situation.AgentDefinition) []situation.PersonaItem {
	var out []situation.PersonaItem
	for _, p := range target.Persona {
		if !p.Hidden || viewer == target.Name {
			out = append(out, p)
		}
	}
	return out
}

// PendingTradesFor returns the trade proposals agent may currently accept
// or reject: pending proposals naming it as an eligible acceptor, plus its
// own pending proposals (which it may withdraw by letting them expire —
// no explicit withdraw operation exists, see base spec §3).
func PendingTradesFor(agent string, state *simstate.SimulationState) []simstate.TradeProposal {
	var out []simstate.TradeProposal
	for _, t := range state.PendingTrades {
		if t.Status != simstate.TradePending {
			continue
		}
		if t.CanAccept(agent) || t.Proposer == agent {
			out = append(out, t)
		}
	}
	return out
}
