package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/action"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

func allAgents() map[string]bool {
	return map[string]bool{
		AgentSkinToneDetector: true, AgentStandardCalibrator: true, AgentSafetyCalibrator: true,
		AgentPreprocessor: true, AgentSegmenter: true, AgentFeatureExtractor: true,
		AgentLesionDetector: true, AgentSimilaritySearcher: true, AgentRiskAssessor: true,
		AgentFairnessAuditor: true, AgentRecommendationGenerator: true, AgentLearningAgent: true,
		AgentEncryptionAgent: true, AgentAuditCommitter: true,
	}
}

func TestCatalogue_ValidatesAgainstRegistry(t *testing.T) {
	cat, err := action.NewCatalogue(Actions(), allAgents())
	require.NoError(t, err)
	assert.Len(t, cat.Actions(), len(Actions()))
}

func TestCatalogue_MissingExecutorRejected(t *testing.T) {
	agents := allAgents()
	delete(agents, AgentAuditCommitter)
	_, err := action.NewCatalogue(Actions(), agents)
	assert.Error(t, err)
}

// TestCatalogue_RejectsNonMonotonicEffect covers §8 testable property
// 4: an action whose effects clear a completion flag (rather than only
// ever setting one, or narrowing a value domain) must be rejected at
// catalogue construction, not merely ignored at apply time.
func TestCatalogue_RejectsNonMonotonicEffect(t *testing.T) {
	actions := append(Actions(), action.Action{
		ID: "regress_audit", AgentID: AgentAuditCommitter,
		Description: "Illegally clears a completion flag already set",
		Cost:        1,
		Effects:     state.Delta{Bools: map[string]bool{state.KeyAuditLogged: false}},
	})

	_, err := action.NewCatalogue(actions, allAgents())
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrNonMonotonicEffect)
}

func TestCatalogue_YAMLRoundTrip(t *testing.T) {
	data, err := DumpYAML(Actions())
	require.NoError(t, err)

	var rendered []yamlAction
	require.NoError(t, yaml.Unmarshal(data, &rendered))
	assert.Len(t, rendered, len(Actions()))
	assert.Equal(t, "detect_skin_tone", rendered[0].ID)
}
