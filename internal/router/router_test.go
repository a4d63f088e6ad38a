package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

func TestRoute_Deterministic(t *testing.T) {
	req := Request{ArtifactKind: ArtifactImage, Action: ActionAnalyze, PrivacyMode: true}
	a := Route(req)
	b := Route(req)
	assert.Equal(t, a, b)
	assert.Equal(t, "privacy", a.PipelineVariant)
}

func TestRoute_StandardVariant(t *testing.T) {
	intent := Route(Request{ArtifactKind: ArtifactImage, Action: ActionAnalyze})
	assert.Equal(t, "standard", intent.PipelineVariant)
	assert.False(t, intent.PrivacyMode)
}

func TestRoute_PrivacyScanActionImpliesPrivacyModeEvenWithoutFlag(t *testing.T) {
	intent := Route(Request{ArtifactKind: ArtifactImage, Action: ActionPrivacyScan})
	assert.Equal(t, "privacy", intent.PipelineVariant)
	assert.True(t, intent.PrivacyMode, "Router, not the caller, decides PrivacyMode for this variant")
}

func TestRoute_ReanalyzeVariant(t *testing.T) {
	intent := Route(Request{ArtifactKind: ArtifactImage, Action: ActionReanalyze})
	assert.Equal(t, "reanalyze", intent.PipelineVariant)
	assert.False(t, intent.PrivacyMode)
}

func TestRoute_GoalSatisfiedByTerminalStateForEveryVariant(t *testing.T) {
	terminal := state.New().Apply(state.Delta{Bools: map[string]bool{state.KeyAuditLogged: true}})

	for _, variant := range []Request{
		{ArtifactKind: ArtifactImage, Action: ActionAnalyze},
		{ArtifactKind: ArtifactImage, Action: ActionPrivacyScan},
		{ArtifactKind: ArtifactImage, Action: ActionReanalyze},
	} {
		intent := Route(variant)
		assert.True(t, intent.Goal.Eval(terminal), "variant %s goal must be satisfied once audit_logged", intent.PipelineVariant)
	}
}
