package agentrunner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/forecastsim/simstate"
	"github.com/kart-io/forecastsim/situation"
)

func testSituation() *situation.Situation {
	return &situation.Situation{
		Name:     "trading-post",
		MaxSteps: 10,
		Agents: []situation.AgentDefinition{
			{
				Name: "alice",
				Persona: []situation.PersonaItem{
					{Key: "role", Value: "trader", Hidden: false},
					{Key: "secret_goal", Value: "corner the wheat market", Hidden: true},
				},
			},
			{
				Name: "bob",
				Persona: []situation.PersonaItem{
					{Key: "role", Value: "farmer", Hidden: false},
				},
			},
		},
		Communication: situation.Communication{
			Channels: []situation.Channel{
				{Name: "market", Members: situation.Everyone()},
				{Name: "council", Members: situation.NewAgentSet("alice")},
			},
			DMBlacklist: []situation.AgentPair{{"alice", "bob"}},
		},
	}
}

func TestVisibleMetadata_HidesSecretsFromOthers(t *testing.T) {
	sit := testSituation()
	alice, _ := sit.AgentByName("alice")

	asSelf := VisibleMetadata("alice", *alice)
	assert.Len(t, asSelf, 2)

	asBob := VisibleMetadata("bob", *alice)
	require.Len(t, asBob, 1)
	assert.Equal(t, "role", asBob[0].Key)
}

func TestVisibleMessages_ChannelMembership(t *testing.T) {
	sit := testSituation()
	market := "market"
	council := "council"
	state := &simstate.SimulationState{
		MessageHistory: []simstate.Message{
			{Step: 1, Sender: "bob", Channel: &market, Content: "wheat for sale"},
			{Step: 1, Sender: "alice", Channel: &council, Content: "private council chatter"},
			{Step: 1, Sender: "bob", Recipients: []string{"alice"}, Content: "dm to alice"},
		},
	}

	bobView := VisibleMessages("bob", state, sit)
	require.Len(t, bobView, 1)
	assert.Equal(t, "wheat for sale", bobView[0].Content)

	aliceView := VisibleMessages("alice", state, sit)
	assert.Len(t, aliceView, 3)
}

func TestPendingTradesFor_ProposerAndEligibleAcceptor(t *testing.T) {
	state := &simstate.SimulationState{
		PendingTrades: []simstate.TradeProposal{
			{ID: "t1", Proposer: "bob", EligibleAcceptors: []string{"alice"}, Status: simstate.TradePending},
			{ID: "t2", Proposer: "alice", EligibleAcceptors: []string{"bob"}, Status: simstate.TradeAccepted},
		},
	}

	assert.Len(t, PendingTradesFor("alice", state), 1)
	assert.Len(t, PendingTradesFor("bob", state), 1)
	assert.Empty(t, PendingTradesFor("carol", state))
}
