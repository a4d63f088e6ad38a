// Package catalogue declares the static, validated action catalogue for
// the canonical dermatology analysis pipeline (§4.2).
package catalogue

import (
	"gopkg.in/yaml.v3"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/action"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// Agent ids bound in the executor registry (C4); every action below
// references exactly one of these.
const (
	AgentSkinToneDetector        = "skin_tone_detector"
	AgentStandardCalibrator      = "standard_calibrator"
	AgentSafetyCalibrator        = "safety_calibrator"
	AgentPreprocessor            = "preprocessor"
	AgentSegmenter               = "segmenter"
	AgentFeatureExtractor        = "feature_extractor"
	AgentLesionDetector          = "lesion_detector"
	AgentSimilaritySearcher      = "similarity_searcher"
	AgentRiskAssessor            = "risk_assessor"
	AgentFairnessAuditor         = "fairness_auditor"
	AgentRecommendationGenerator = "recommendation_generator"
	AgentLearningAgent           = "learning_agent"
	AgentEncryptionAgent         = "encryption_agent"
	AgentAuditCommitter          = "audit_committer"
)

// Actions returns the declarative, unvalidated action list for the
// canonical pipeline. Callers pass this to action.NewCatalogue together
// with the bound registry to get a validated Catalogue.
func Actions() []action.Action {
	return []action.Action{
		{
			ID: "detect_skin_tone", AgentID: AgentSkinToneDetector,
			Description: "Detect Fitzpatrick skin phototype and initial confidence",
			Cost:        1,
			Effects:     state.Delta{Bools: map[string]bool{state.KeySkinToneDetected: true}},
		},
		{
			ID: "calibrate_standard", AgentID: AgentStandardCalibrator,
			Description: "Standard colour/exposure calibration for well-classified input",
			Cost:        1,
			Preconditions: state.And(
				state.Bool(state.KeySkinToneDetected, true),
				state.Bool(state.KeyIsLowConfidence, false),
			),
			Effects: state.Delta{Bools: map[string]bool{state.KeyCalibrationComplete: true}},
		},
		{
			ID: "calibrate_safety", AgentID: AgentSafetyCalibrator,
			Description:   "Conservative calibration branch used under low skin-tone detection confidence",
			Cost:          1.5,
			FailurePolicy: action.PolicyReplan,
			Preconditions: state.And(
				state.Bool(state.KeySkinToneDetected, true),
				state.Bool(state.KeyIsLowConfidence, true),
			),
			Effects: state.Delta{Bools: map[string]bool{
				state.KeyCalibrationComplete: true,
				state.KeySafetyCalibrated:    true,
			}},
		},
		{
			ID: "preprocess", AgentID: AgentPreprocessor,
			Description:   "Validate that the calibrated image is usable downstream",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyCalibrationComplete, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyPreprocessingComplete: true}},
		},
		{
			ID: "segment", AgentID: AgentSegmenter,
			Description:   "Segment the lesion boundary from surrounding skin",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyPreprocessingComplete, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeySegmentationComplete: true}},
		},
		{
			ID: "extract_features", AgentID: AgentFeatureExtractor,
			Description:   "Extract shape/colour/texture features from the segmented lesion",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeySegmentationComplete, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyFeaturesExtracted: true}},
		},
		{
			ID: "detect_lesions", AgentID: AgentLesionDetector,
			Description:   "Classify lesion type from the original image",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyFeaturesExtracted, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyLesionsDetected: true}},
		},
		{
			ID: "search_similarity", AgentID: AgentSimilaritySearcher,
			Description:   "Consult the reasoning bank for similar prior cases",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyLesionsDetected, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeySimilaritySearched: true}},
		},
		{
			ID: "assess_risk", AgentID: AgentRiskAssessor,
			Description:   "Assign a risk label from lesion classification and similar cases",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeySimilaritySearched, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyRiskAssessed: true}},
		},
		{
			ID: "audit_fairness", AgentID: AgentFairnessAuditor,
			Description:   "Score the analysis for demographic fairness",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyRiskAssessed, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyFairnessAudited: true}},
		},
		{
			ID: "generate_recommendation", AgentID: AgentRecommendationGenerator,
			Description:   "Produce the patient-facing recommendation text",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyFairnessAudited, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyRecommendationGenerated: true}},
		},
		{
			ID: "commit_learning", AgentID: AgentLearningAgent,
			Description:   "Store this run's approach/outcome as a new, immutable reasoning pattern",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyRecommendationGenerated, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyLearningCommitted: true}},
		},
		{
			ID: "encrypt_payload", AgentID: AgentEncryptionAgent,
			Description:   "Encrypt the analysis payload with a run-scoped ephemeral key",
			Cost:          1,
			Preconditions: state.And(state.Bool(state.KeyLearningCommitted, true)),
			Effects:       state.Delta{Bools: map[string]bool{state.KeyPayloadEncrypted: true}},
		},
		{
			ID: "commit_audit", AgentID: AgentAuditCommitter,
			Description:   "Append the terminal, hash-chained audit entry for this run",
			Cost:          1,
			Preconditions: state.And(
				state.Bool(state.KeyPayloadEncrypted, true),
				state.Bool(state.KeyLearningCommitted, true),
			),
			Effects: state.Delta{Bools: map[string]bool{state.KeyAuditLogged: true}},
		},
	}
}

// yamlAction is the YAML rendering shape for operator inspection
// (`orchctl catalogue dump`); the planner never loads actions from
// YAML, since the catalogue is statically declared in Go per the
// Non-goal against runtime-learned action models.
type yamlAction struct {
	ID          string  `yaml:"id"`
	AgentID     string  `yaml:"agent_id"`
	Description string  `yaml:"description"`
	Cost        float64 `yaml:"cost"`
	FailurePolicy string `yaml:"failure_policy"`
}

// DumpYAML renders actions for operator inspection and round-trip
// tests; it is not involved in planning.
func DumpYAML(actions []action.Action) ([]byte, error) {
	rendered := make([]yamlAction, len(actions))
	for i, a := range actions {
		policy := a.FailurePolicy
		if policy == "" {
			policy = action.PolicyFatal
		}
		rendered[i] = yamlAction{ID: a.ID, AgentID: a.AgentID, Description: a.Description, Cost: a.Cost, FailurePolicy: string(policy)}
	}
	return yaml.Marshal(rendered)
}
