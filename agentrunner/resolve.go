package agentrunner

import (
	"context"

	loggercore "github.com/kart-io/logger/core"

	simerrors "github.com/kart-io/forecastsim/errors"
	"github.com/kart-io/forecastsim/llm"
	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

// rawAction is the wire shape the LLM is asked to emit for one turn. It
// maps onto simstate.AgentAction after validation; fields not relevant to
// the chosen action_name are simply left zero.
type rawAction struct {
	ActionName        string            `json:"action_name"`
	Parameters        map[string]string `json:"parameters"`
	MessagesToSend    []rawMessage      `json:"messages_to_send"`
	TradeOffering     map[string]int    `json:"trade_offering"`
	TradeRequesting   map[string]int    `json:"trade_requesting"`
	TradeEligible     []string          `json:"trade_eligible_acceptors"`
	TradeExpiresSteps int               `json:"trade_expires_in_steps"`
	TradeAcceptanceID string            `json:"trade_acceptance_id"`
}

type rawMessage struct {
	Channel    *string  `json:"channel"`
	Recipients []string `json:"recipients"`
	Content    string   `json:"content"`
}

// Runner resolves one agent's turn by prompting an LLM and parsing its
// structured reply. Any failure along the way — request error, cost
// rejection, malformed JSON, reference to an action the agent cannot take
// — is swallowed into a no_action for that agent rather than aborting the
// step, matching the base spec's partial-failure semantics (one agent's
// bad output never halts the simulation).
type Runner struct {
	client llm.StructuredClient
	log    loggercore.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger overrides the Runner's logger.
func WithLogger(log loggercore.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// New builds a Runner around a structured LLM client.
func New(client llm.StructuredClient, opts ...Option) *Runner {
	r := &Runner{client: client, log: loggercore.NewNoOpLogger(nil)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveAction builds the prompt context for agentName, invokes the LLM,
// and parses the reply into a simstate.AgentAction. It never returns an
// error: any failure yields simstate.NoAction(agentName) so callers can
// always proceed to the next agent.
func (r *Runner) ResolveAction(ctx context.Context, agentName string, model string, state *simstate.SimulationState, sit *situation.Situation) simstate.AgentAction {
	fallback := simstate.NoAction(agentName)

	pc, err := BuildPromptContext(agentName, state, sit)
	if err != nil {
		r.log.Warnw("agentrunner: failed to build prompt context", "agent", agentName, "error", err)
		return fallback
	}

	req := &llm.CompletionRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: "system", Content: "You choose exactly one action per turn and reply with a single JSON object matching the requested schema."},
			{Role: "user", Content: pc.Render()},
		},
		Temperature: 0.7,
		SchemaName:  "agent_action",
	}

	var raw rawAction
	if err := llm.CompleteStructured(ctx, r.client, req, &raw); err != nil {
		r.log.Warnw("agentrunner: structured completion failed, falling back to no_action",
			"agent", agentName, "error", err, "code", simerrors.Code(err))
		return fallback
	}

	action, err := toAgentAction(agentName, raw, pc, sit)
	if err != nil {
		r.log.Warnw("agentrunner: rejecting malformed action, falling back to no_action",
			"agent", agentName, "error", err)
		return fallback
	}
	return action
}

func toAgentAction(agentName string, raw rawAction, pc *PromptContext, sit *situation.Situation) (simstate.AgentAction, error) {
	if raw.ActionName == "" || raw.ActionName == "no_action" {
		return simstate.NoAction(agentName), nil
	}

	switch raw.ActionName {
	case "trade_propose":
		return buildTradePropose(agentName, raw), nil
	case "trade_accept", "trade_reject":
		if raw.TradeAcceptanceID == "" {
			return simstate.AgentAction{}, simerrors.New(simerrors.CodeAgentAction, "trade response missing trade_acceptance_id")
		}
	default:
		if !actionIsAvailable(raw.ActionName, pc.AvailableActions) {
			return simstate.AgentAction{}, simerrors.Newf(simerrors.CodeUnknownAction, "agent %s proposed unavailable action %q", agentName, raw.ActionName)
		}
	}

	action := simstate.AgentAction{
		AgentName:         agentName,
		ActionName:        raw.ActionName,
		Parameters:        raw.Parameters,
		TradeAcceptanceID: raw.TradeAcceptanceID,
	}
	for _, m := range raw.MessagesToSend {
		msg := simstate.Message{
			Sender:     agentName,
			Recipients: m.Recipients,
			Content:    m.Content,
		}
		if m.Channel != nil {
			ch := *m.Channel
			msg.Channel = &ch
		}
		if err := validateMessageTarget(agentName, msg, sit); err != nil {
			return simstate.AgentAction{}, err
		}
		action.MessagesToSend = append(action.MessagesToSend, msg)
	}
	return action, nil
}

func buildTradePropose(agentName string, raw rawAction) simstate.AgentAction {
	return simstate.AgentAction{
		AgentName:  agentName,
		ActionName: "trade_propose",
		Parameters: raw.Parameters,
		TradeProposal: &simstate.TradeProposal{
			Proposer:          agentName,
			EligibleAcceptors: raw.TradeEligible,
			Offering:          raw.TradeOffering,
			Requesting:        raw.TradeRequesting,
		},
		// ExpiresInSteps is resolved against the current step number by
		// the simulator, which owns ProposedAtStep/ExpiresAtStep/ID
		// assignment for every accepted proposal.
		Metadata: map[string]interface{}{"expires_in_steps": raw.TradeExpiresSteps},
	}
}

func actionIsAvailable(name string, available []situation.ActionDefinition) bool {
	for _, a := range available {
		if a.Name == name {
			return true
		}
	}
	return false
}

func validateMessageTarget(sender string, msg simstate.Message, sit *situation.Situation) error {
	if msg.IsDM() {
		if len(msg.Recipients) > 2 {
			return simerrors.Newf(simerrors.CodeAgentAction, "dm from %s has %d recipients, exceeding the 2-recipient limit", sender, len(msg.Recipients))
		}
		for _, r := range msg.Recipients {
			if sit.Communication.Blocked(sender, r) {
				return simerrors.Newf(simerrors.CodeAgentAction, "dm from %s to %s is blacklisted", sender, r)
			}
		}
		return nil
	}
	for _, ch := range sit.Communication.Channels {
		if ch.Name == *msg.Channel {
			if !ch.Members.Allows(sender) {
				return simerrors.Newf(simerrors.CodeAgentAction, "agent %s is not a member of channel %s", sender, ch.Name)
			}
			return nil
		}
	}
	return simerrors.Newf(simerrors.CodeAgentAction, "unknown channel %q", *msg.Channel)
}
