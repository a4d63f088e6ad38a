package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/action"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

func tinyCatalogue(t *testing.T) *action.Catalogue {
	t.Helper()
	actions := []action.Action{
		{
			ID: "detect", AgentID: "skin_tone", Cost: 1,
			Effects: state.Delta{Bools: map[string]bool{state.KeySkinToneDetected: true}},
		},
		{
			ID: "calibrate_standard", AgentID: "calibrator", Cost: 1,
			Preconditions: state.And(state.Bool(state.KeySkinToneDetected, true), state.Bool(state.KeyIsLowConfidence, false)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyCalibrationComplete: true}},
		},
		{
			ID: "calibrate_safety", AgentID: "calibrator", Cost: 2,
			Preconditions: state.And(state.Bool(state.KeySkinToneDetected, true), state.Bool(state.KeyIsLowConfidence, true)),
			Effects: state.Delta{Bools: map[string]bool{
				state.KeyCalibrationComplete: true,
				state.KeySafetyCalibrated:    true,
			}},
		},
	}
	registered := map[string]bool{"skin_tone": true, "calibrator": true}
	cat, err := action.NewCatalogue(actions, registered)
	require.NoError(t, err)
	return cat
}

func TestPlan_Soundness_HappyPath(t *testing.T) {
	cat := tinyCatalogue(t)
	p := New(cat, 10000, 0)

	initial := state.New().Apply(state.Delta{Bools: map[string]bool{state.KeyIsLowConfidence: false}})
	goal := state.And(state.Bool(state.KeyCalibrationComplete, true))

	plan, err := p.Plan(initial, goal)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "detect", plan.Actions[0].ID)
	assert.Equal(t, "calibrate_standard", plan.Actions[1].ID)

	cur := initial
	for _, a := range plan.Actions {
		require.True(t, a.Applicable(cur))
		cur = a.Apply(cur)
	}
	assert.True(t, goal.Eval(cur))
}

func TestPlan_PicksSafetyBranchWhenLowConfidence(t *testing.T) {
	cat := tinyCatalogue(t)
	p := New(cat, 10000, 0)

	initial := state.New().Apply(state.Delta{Bools: map[string]bool{state.KeyIsLowConfidence: true}})
	goal := state.And(state.Bool(state.KeyCalibrationComplete, true))

	plan, err := p.Plan(initial, goal)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "calibrate_safety", plan.Actions[1].ID)
}

func TestPlan_GoalAlreadySatisfied(t *testing.T) {
	cat := tinyCatalogue(t)
	p := New(cat, 10000, 0)
	initial := state.New().Apply(state.Delta{Bools: map[string]bool{state.KeyCalibrationComplete: true}})
	goal := state.And(state.Bool(state.KeyCalibrationComplete, true))

	plan, err := p.Plan(initial, goal)
	assert.ErrorIs(t, err, platform.ErrGoalAlreadySatisfied)
	assert.Empty(t, plan.Actions)
}

func TestPlan_Determinism(t *testing.T) {
	cat := tinyCatalogue(t)
	p := New(cat, 10000, 0)
	initial := state.New().Apply(state.Delta{Bools: map[string]bool{state.KeyIsLowConfidence: false}})
	goal := state.And(state.Bool(state.KeyCalibrationComplete, true))

	first, err := p.Plan(initial, goal)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Plan(initial, goal)
		require.NoError(t, err)
		require.Equal(t, len(first.Actions), len(again.Actions))
		for i := range first.Actions {
			assert.Equal(t, first.Actions[i].ID, again.Actions[i].ID)
		}
	}
}

func TestPlan_NoPlanFound(t *testing.T) {
	cat := tinyCatalogue(t)
	p := New(cat, 10000, 0)
	initial := state.New()
	goal := state.And(state.Bool(state.KeyAuditLogged, true))

	_, err := p.Plan(initial, goal)
	assert.Error(t, err)
}
