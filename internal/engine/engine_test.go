package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/action"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/planner"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

func buildHappyPath(t *testing.T) (*Engine, state.Predicate) {
	t.Helper()
	actions := []action.Action{
		{ID: "detect", AgentID: "skin_tone", Cost: 1,
			Effects: state.Delta{Bools: map[string]bool{state.KeySkinToneDetected: true}}},
		{ID: "calibrate", AgentID: "calibrator", Cost: 1,
			Preconditions: state.And(state.Bool(state.KeySkinToneDetected, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyCalibrationComplete: true}}},
	}
	reg := registry.New(map[string]registry.Executor{
		"skin_tone": func(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
			return registry.Result{Metadata: map[string]interface{}{"ok": true}}, nil
		},
		"calibrator": func(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
			return registry.Result{}, nil
		},
	})
	cat, err := action.NewCatalogue(actions, reg.Registered())
	require.NoError(t, err)
	p := planner.New(cat, 10000, 0)
	e := New(p, reg, 200*time.Millisecond, 5, platform.NoOpLogger{})
	goal := state.And(state.Bool(state.KeyCalibrationComplete, true))
	return e, goal
}

func TestEngine_HappyPath(t *testing.T) {
	e, goal := buildHappyPath(t)
	trace, err := e.Execute(context.Background(), "run-1", state.New(), goal, nil, Hooks{})
	require.NoError(t, err)
	require.Len(t, trace.Agents, 2)
	assert.Equal(t, StatusCompleted, trace.Agents[0].Status)
	assert.Equal(t, StatusCompleted, trace.Agents[1].Status)
	assert.True(t, trace.FinalState.Bool(state.KeyCalibrationComplete))
}

func TestEngine_TimeoutProducesTimedOutRecord(t *testing.T) {
	actions := []action.Action{
		{ID: "detect", AgentID: "skin_tone", Cost: 1,
			Effects:       state.Delta{Bools: map[string]bool{state.KeySkinToneDetected: true}},
			FailurePolicy: action.PolicySkip},
	}
	reg := registry.New(map[string]registry.Executor{
		"skin_tone": func(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
			<-ctx.Done()
			return registry.Result{}, ctx.Err()
		},
	})
	cat, err := action.NewCatalogue(actions, reg.Registered())
	require.NoError(t, err)
	p := planner.New(cat, 10000, 0)
	deadline := 50 * time.Millisecond
	e := New(p, reg, deadline, 5, platform.NoOpLogger{})
	goal := state.And(state.Bool(state.KeySkinToneDetected, true))

	start := time.Now()
	trace, err := e.Execute(context.Background(), "run-2", state.New(), goal, nil, Hooks{})
	require.NoError(t, err)
	require.Len(t, trace.Agents, 1)
	assert.Equal(t, StatusTimedOut, trace.Agents[0].Status)
	assert.LessOrEqual(t, time.Since(start), deadline+100*time.Millisecond)
}

func TestEngine_ReplanSubstitutesSafetyBranch(t *testing.T) {
	actions := []action.Action{
		{ID: "detect", AgentID: "skin_tone", Cost: 1,
			Effects: state.Delta{Bools: map[string]bool{state.KeySkinToneDetected: true}}},
		{ID: "calibrate_standard", AgentID: "calibrator", Cost: 1,
			Preconditions: state.And(state.Bool(state.KeySkinToneDetected, true), state.Bool(state.KeyIsLowConfidence, false)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyCalibrationComplete: true}}},
		{ID: "calibrate_safety", AgentID: "calibrator", Cost: 2,
			Preconditions: state.And(state.Bool(state.KeySkinToneDetected, true), state.Bool(state.KeyIsLowConfidence, true)),
			Effects: state.Delta{Bools: map[string]bool{
				state.KeyCalibrationComplete: true,
				state.KeySafetyCalibrated:    true,
			}}},
	}
	lowConf := 0.45
	reg := registry.New(map[string]registry.Executor{
		"skin_tone": func(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
			return registry.Result{
				StateUpdates: state.Delta{Bools: map[string]bool{state.KeyIsLowConfidence: true}, Confidence: &lowConf},
				ShouldReplan: true,
			}, nil
		},
		"calibrator": func(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
			return registry.Result{}, nil
		},
	})
	cat, err := action.NewCatalogue(actions, reg.Registered())
	require.NoError(t, err)
	p := planner.New(cat, 10000, 0)
	e := New(p, reg, 200*time.Millisecond, 5, platform.NoOpLogger{})
	goal := state.And(state.Bool(state.KeyCalibrationComplete, true))

	trace, err := e.Execute(context.Background(), "run-3", state.New(), goal, nil, Hooks{})
	require.NoError(t, err)
	var sawSafety, sawStandard bool
	for _, rec := range trace.Agents {
		if rec.ActionName == "calibrate_safety" {
			sawSafety = true
		}
		if rec.ActionName == "calibrate_standard" {
			sawStandard = true
		}
	}
	assert.True(t, sawSafety)
	assert.False(t, sawStandard)
	assert.True(t, trace.FinalState.Bool(state.KeySafetyCalibrated))
}

func TestEngine_ReplanExhaustedIsFatal(t *testing.T) {
	// Four-step chain; an executor that always asks to replan forces one
	// replan per completed step, exceeding a MaxReplans=2 budget.
	actions := []action.Action{
		{ID: "a1", AgentID: "step1", Cost: 1,
			Effects: state.Delta{Bools: map[string]bool{state.KeyCalibrationComplete: true}}},
		{ID: "a2", AgentID: "step2", Cost: 1,
			Preconditions: state.And(state.Bool(state.KeyCalibrationComplete, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyPreprocessingComplete: true}}},
		{ID: "a3", AgentID: "step3", Cost: 1,
			Preconditions: state.And(state.Bool(state.KeyPreprocessingComplete, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeySegmentationComplete: true}}},
		{ID: "a4", AgentID: "step4", Cost: 1,
			Preconditions: state.And(state.Bool(state.KeySegmentationComplete, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyFeaturesExtracted: true}}},
	}
	alwaysReplan := func(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
		return registry.Result{ShouldReplan: true}, nil
	}
	reg := registry.New(map[string]registry.Executor{
		"step1": alwaysReplan, "step2": alwaysReplan, "step3": alwaysReplan, "step4": alwaysReplan,
	})
	cat, err := action.NewCatalogue(actions, reg.Registered())
	require.NoError(t, err)
	p := planner.New(cat, 10000, 0)
	e := New(p, reg, 200*time.Millisecond, 2, platform.NoOpLogger{})
	goal := state.And(state.Bool(state.KeyFeaturesExtracted, true))

	_, err = e.Execute(context.Background(), "run-4", state.New(), goal, nil, Hooks{})
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrReplanExhausted)
}
