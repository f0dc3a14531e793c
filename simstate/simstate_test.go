package simstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/forecastsim/situation"
)

func testSituation() *situation.Situation {
	return &situation.Situation{
		Name:     "trading-post",
		MaxSteps: 5,
		Agents: []situation.AgentDefinition{
			{Name: "alice", StartingInventory: map[string]int{"gold": 10, "sword": 0}},
			{Name: "bob", StartingInventory: map[string]int{"gold": 20}},
		},
		Environment: situation.Environment{Inventory: map[string]int{"gold": 0, "wheat": 3}},
	}
}

func TestNew_ExcludesZeroCountStartingItems(t *testing.T) {
	st := New(testSituation())

	assert.Equal(t, 10, st.ItemCount("alice", "gold"))
	_, hasSword := st.Inventories["alice"]["sword"]
	assert.False(t, hasSword)
	_, hasEnvGold := st.EnvironmentInventory["gold"]
	assert.False(t, hasEnvGold)
	assert.Equal(t, 3, st.ItemCount("environment", "wheat"))
}

func TestAddRemoveItem_NeverNegativeAndZeroKeysAbsent(t *testing.T) {
	st := New(testSituation())

	st.RemoveItem("alice", "gold", 100)
	assert.Equal(t, 0, st.ItemCount("alice", "gold"))
	_, present := st.Inventories["alice"]["gold"]
	assert.False(t, present)

	st.AddItem("alice", "gold", 5)
	assert.Equal(t, 5, st.ItemCount("alice", "gold"))
}

func TestDeepCopy_Independence(t *testing.T) {
	st := New(testSituation())
	market := "market"
	st.MessageHistory = append(st.MessageHistory, Message{Step: 0, Sender: "alice", Channel: &market, Content: "hi"})
	st.PendingTrades = append(st.PendingTrades, TradeProposal{
		ID: "t1", Proposer: "alice", EligibleAcceptors: []string{"bob"},
		Offering: map[string]int{"gold": 5}, Requesting: map[string]int{"sword": 1},
	})
	st.ActionLog = append(st.ActionLog, AgentAction{
		AgentName: "alice", ActionName: "trade_propose",
		Parameters: map[string]string{"k": "v"},
	})

	cp := st.DeepCopy()

	cp.AddItem("alice", "gold", 1000)
	assert.NotEqual(t, st.ItemCount("alice", "gold"), cp.ItemCount("alice", "gold"))

	cp.PendingTrades[0].Offering["gold"] = 999
	assert.Equal(t, 5, st.PendingTrades[0].Offering["gold"])

	cp.ActionLog[0].Parameters["k"] = "mutated"
	assert.Equal(t, "v", st.ActionLog[0].Parameters["k"])

	cp.MessageHistory[0].Content = "mutated"
	assert.Equal(t, "hi", st.MessageHistory[0].Content)
}

func TestNoAction_Fallback(t *testing.T) {
	a := NoAction("alice")
	assert.Equal(t, "no_action", a.ActionName)
	assert.Equal(t, "alice", a.AgentName)
}

func TestMessage_IsDM(t *testing.T) {
	dm := Message{Recipients: []string{"alice"}}
	assert.True(t, dm.IsDM())

	channel := "market"
	broadcast := Message{Channel: &channel}
	assert.False(t, broadcast.IsDM())
}

func TestTradeProposal_CanAccept(t *testing.T) {
	tp := TradeProposal{EligibleAcceptors: []string{"bob", "carol"}}
	assert.True(t, tp.CanAccept("bob"))
	assert.False(t, tp.CanAccept("alice"))
	require.NotNil(t, tp.EligibleAcceptors)
}
