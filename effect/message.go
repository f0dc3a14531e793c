package effect

import (
	"github.com/google/uuid"

	"github.com/kart-io/forecastsim/simstate"
)

// RecordMessage appends m to the simulation's message history, stamping
// it with the current step number. Visibility filtering happens later, at
// read time (see agentrunner), not here.
func (e *Engine) RecordMessage(m simstate.Message) {
	m.Step = e.state.StepNumber
	e.state.MessageHistory = append(e.state.MessageHistory, m)
}

// RegisterTrade assigns a fresh ID to proposal, stamps its proposed/expiry
// steps from the current step number and expiresIn, appends it to the
// pending list, and returns the assigned ID.
func (e *Engine) RegisterTrade(proposal simstate.TradeProposal, expiresIn int) string {
	id := uuid.New().String()[:8]
	proposal.ID = id
	proposal.ProposedAtStep = e.state.StepNumber
	proposal.ExpiresAtStep = e.state.StepNumber + expiresIn
	proposal.Status = simstate.TradePending
	e.state.PendingTrades = append(e.state.PendingTrades, proposal)
	return id
}
