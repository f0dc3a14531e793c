package agentrunner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

// PromptContext is the fully assembled, visibility-filtered view handed to
// the LLM for one agent's turn. Building this struct (rather than
// string-concatenating ad hoc) keeps every field individually testable.
type PromptContext struct {
	AgentName        string
	RulesText        string
	OwnPersona       []situation.PersonaItem
	OtherPersonas    map[string][]situation.PersonaItem
	Inventory        map[string]int
	VisibleMessages  []simstate.Message
	PendingTrades    []simstate.TradeProposal
	AvailableActions []situation.ActionDefinition
	StepNumber       int
}

// builtinActions are always available to every agent regardless of the
// situation's declared action catalog: the no-op fallback and the three
// legs of the trade lifecycle (propose/accept/reject), all handled
// directly by simulator.dispatch rather than the effect engine.
var builtinActions = []situation.ActionDefinition{
	{Name: "no_action", Description: "Take no action this step."},
	{Name: "trade_propose", Description: "Propose a trade of inventory items with another agent."},
	{Name: "trade_accept", Description: "Accept a pending trade proposal offered to you."},
	{Name: "trade_reject", Description: "Reject a pending trade proposal offered to you."},
}

// BuildPromptContext assembles the deterministic view of state for agent,
// filtering hidden persona fields and private messages per visibility.go.
func BuildPromptContext(agentName string, state *simstate.SimulationState, sit *situation.Situation) (*PromptContext, error) {
	def, ok := sit.AgentByName(agentName)
	if !ok {
		return nil, fmt.Errorf("agentrunner: unknown agent %q", agentName)
	}

	others := make(map[string][]situation.PersonaItem)
	for _, a := range sit.Agents {
		if a.Name == agentName {
			continue
		}
		others[a.Name] = VisibleMetadata(agentName, a)
	}

	actions := make([]situation.ActionDefinition, 0, len(builtinActions)+len(sit.AvailableActions(agentName)))
	actions = append(actions, builtinActions...)
	actions = append(actions, sit.AvailableActions(agentName)...)

	return &PromptContext{
		AgentName:        agentName,
		RulesText:        sit.RulesText,
		OwnPersona:       VisibleMetadata(agentName, *def),
		OtherPersonas:    others,
		Inventory:        state.Inventory(agentName),
		VisibleMessages:  VisibleMessages(agentName, state, sit),
		PendingTrades:    PendingTradesFor(agentName, state),
		AvailableActions: actions,
		StepNumber:       state.StepNumber,
	}, nil
}

// Render produces the natural-language prompt text sent to the LLM. The
// layout is stable and ordered (sorted agent names, declaration-order
// actions) so identical state always yields byte-identical prompts.
func (pc *PromptContext) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "SITUATION RULES\n%s\n\n", pc.RulesText)
	fmt.Fprintf(&sb, "You are %s. Step %d.\n\n", pc.AgentName, pc.StepNumber)

	sb.WriteString("YOUR PERSONA\n")
	for _, p := range pc.OwnPersona {
		fmt.Fprintf(&sb, "- %s: %s\n", p.Key, p.Value)
	}
	sb.WriteString("\n")

	sb.WriteString("OTHER AGENTS (public information only)\n")
	names := make([]string, 0, len(pc.OtherPersonas))
	for n := range pc.OtherPersonas {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&sb, "%s:\n", n)
		for _, p := range pc.OtherPersonas[n] {
			fmt.Fprintf(&sb, "  - %s: %s\n", p.Key, p.Value)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("YOUR INVENTORY\n")
	items := make([]string, 0, len(pc.Inventory))
	for item := range pc.Inventory {
		items = append(items, item)
	}
	sort.Strings(items)
	for _, item := range items {
		fmt.Fprintf(&sb, "- %s: %d\n", item, pc.Inventory[item])
	}
	sb.WriteString("\n")

	sb.WriteString("MESSAGES VISIBLE TO YOU\n")
	for _, m := range pc.VisibleMessages {
		if m.IsDM() {
			fmt.Fprintf(&sb, "[step %d] DM from %s to %s: %s\n", m.Step, m.Sender, strings.Join(m.Recipients, ","), m.Content)
		} else {
			fmt.Fprintf(&sb, "[step %d] #%s %s: %s\n", m.Step, *m.Channel, m.Sender, m.Content)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("TRADES YOU MAY ACCEPT, REJECT, OR IGNORE\n")
	for _, t := range pc.PendingTrades {
		fmt.Fprintf(&sb, "- %s: %s offers %v for %v (expires step %d)\n", t.ID, t.Proposer, t.Offering, t.Requesting, t.ExpiresAtStep)
	}
	sb.WriteString("\n")

	sb.WriteString("ACTIONS AVAILABLE TO YOU\n")
	for _, a := range pc.AvailableActions {
		fmt.Fprintf(&sb, "- %s: %s\n", a.Name, a.Description)
		for _, p := range a.Parameters {
			fmt.Fprintf(&sb, "    param %s (%s): %s\n", p.Name, p.Type, p.Description)
		}
	}

	return sb.String()
}
