package effect

import (
	"fmt"

	"github.com/kart-io/forecastsim/simstate"
)

func (e *Engine) findTrade(id string) (*simstate.TradeProposal, bool) {
	for i := range e.state.PendingTrades {
		if e.state.PendingTrades[i].ID == id {
			return &e.state.PendingTrades[i], true
		}
	}
	return nil, false
}

// ResolveTrade attempts to settle proposal id on behalf of acceptor. It
// fails (returning false and a reason) if the proposal is missing, not
// pending, the acceptor is ineligible, or either side cannot fulfill its
// side of the bundle. No inventory changes on failure; the one state
// change is that a proposer who can no longer fulfill the offer has the
// proposal marked expired. On success both bundles are
// transferred atomically and two TradeRecords are appended, one per
// direction.
func (e *Engine) ResolveTrade(id, acceptor string) (bool, string) {
	proposal, ok := e.findTrade(id)
	if !ok {
		return false, fmt.Sprintf("trade proposal %q not found", id)
	}
	if proposal.Status != simstate.TradePending {
		return false, fmt.Sprintf("trade proposal %q is not pending (status=%s)", id, proposal.Status)
	}
	if !proposal.CanAccept(acceptor) {
		return false, fmt.Sprintf("%s is not eligible to accept trade %q", acceptor, id)
	}
	if !e.holds(proposal.Proposer, proposal.Offering) {
		proposal.Status = simstate.TradeExpired
		return false, fmt.Sprintf("proposer %s can no longer fulfill trade %q", proposal.Proposer, id)
	}
	if !e.holds(acceptor, proposal.Requesting) {
		return false, fmt.Sprintf("%s lacks the requested items for trade %q", acceptor, id)
	}

	for item, qty := range proposal.Offering {
		e.state.RemoveItem(proposal.Proposer, item, qty)
		e.state.AddItem(acceptor, item, qty)
		e.state.TradeHistory = append(e.state.TradeHistory, simstate.TradeRecord{
			ItemName: item, Quantity: qty, From: proposal.Proposer, To: acceptor,
			Step: e.state.StepNumber, TradeID: id,
		})
	}
	for item, qty := range proposal.Requesting {
		e.state.RemoveItem(acceptor, item, qty)
		e.state.AddItem(proposal.Proposer, item, qty)
		e.state.TradeHistory = append(e.state.TradeHistory, simstate.TradeRecord{
			ItemName: item, Quantity: qty, From: acceptor, To: proposal.Proposer,
			Step: e.state.StepNumber, TradeID: id,
		})
	}
	proposal.Status = simstate.TradeAccepted
	return true, fmt.Sprintf("trade %q accepted by %s", id, acceptor)
}

func (e *Engine) holds(agent string, bundle map[string]int) bool {
	for item, qty := range bundle {
		if e.state.ItemCount(agent, item) < qty {
			return false
		}
	}
	return true
}

// RejectTrade marks a pending proposal as rejected.
func (e *Engine) RejectTrade(id string) (bool, string) {
	proposal, ok := e.findTrade(id)
	if !ok {
		return false, fmt.Sprintf("trade proposal %q not found", id)
	}
	if proposal.Status != simstate.TradePending {
		return false, fmt.Sprintf("trade proposal %q is not pending (status=%s)", id, proposal.Status)
	}
	proposal.Status = simstate.TradeRejected
	return true, fmt.Sprintf("trade %q rejected", id)
}

// ExpireTrades marks every pending trade whose expiry step has passed as
// expired, returning one log line per expiry.
func (e *Engine) ExpireTrades() []string {
	var log []string
	for i := range e.state.PendingTrades {
		t := &e.state.PendingTrades[i]
		if t.Status == simstate.TradePending && e.state.StepNumber > t.ExpiresAtStep {
			t.Status = simstate.TradeExpired
			log = append(log, fmt.Sprintf("trade %q expired", t.ID))
		}
	}
	return log
}
