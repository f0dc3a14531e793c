package agentrunner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/forecastsim/simstate"
)

func TestBuildPromptContext_IncludesBuiltinActionsAheadOfDeclaredOnes(t *testing.T) {
	sit := testSituation()
	state := simstate.New(sit)

	pc, err := BuildPromptContext("alice", state, sit)
	require.NoError(t, err)

	require.True(t, len(pc.AvailableActions) >= len(builtinActions))
	for i, want := range builtinActions {
		assert.Equal(t, want.Name, pc.AvailableActions[i].Name)
	}
}

func TestRender_ListsBuiltinActionsInActionsSection(t *testing.T) {
	sit := testSituation()
	state := simstate.New(sit)

	pc, err := BuildPromptContext("alice", state, sit)
	require.NoError(t, err)

	rendered := pc.Render()
	assert.Contains(t, rendered, "no_action: Take no action this step.")
	assert.Contains(t, rendered, "trade_propose:")
	assert.Contains(t, rendered, "trade_accept:")
	assert.Contains(t, rendered, "trade_reject:")
}
