// Package agents binds the fourteen concrete executors of the canonical
// dermatology pipeline to the abstract contracts.* capabilities, and
// registers them against the catalogue's agent ids (§4.2/§4.7).
package agents

import (
	"sync"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/audit"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/catalogue"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/contracts"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/reasoning"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
)

// Input is the run-scoped, executor-agnostic payload threaded through
// registry.Invocation.Input for every agent in this package.
type Input struct {
	ImageBytes      []byte
	ImageMime       string
	PrivacyMode     bool
	PipelineVariant string
	AnalysisID      string
	TaskType        string
}

// Deps collects every external capability and tunable the fourteen
// executors in this package depend on. A single Deps value is shared
// across all bound executors; callers build one per process, not per
// run.
type Deps struct {
	Vision    contracts.VisionSpecialist
	Generator contracts.Generator
	Embedder  contracts.Embedder
	Crypto    contracts.Crypto
	Notifier  contracts.Notifier
	Clock     contracts.Clock
	Random    contracts.Random

	Bank   *reasoning.Bank
	Ledger *audit.Ledger
	Logger platform.Logger

	ConfidenceLowThreshold     float64
	SafetyCalibrationThreshold float64

	scratch sync.Map // run id -> *caseMemory
}

// caseMemory is the per-run working buffer the pipeline's steps use to
// pass artifacts (embeddings, classifications, generated text) that
// don't belong in the closed WorldState alphabet. Grounded on the
// teacher's per-execution StateStore keying (orchestration's
// WorkflowExecution records keyed by execution id), but in-memory and
// scoped to one run's lifetime rather than durable: durability for
// anything that matters past a run is the reasoning bank's and the
// audit ledger's job, not this buffer's.
type caseMemory struct {
	mu sync.Mutex

	SkinToneClassifications []contracts.Classification
	FitzpatrickLabel        string
	ConfidenceScore         float64

	HeatmapDigest [32]byte

	FeatureEmbedding []float32

	LesionClassifications []contracts.Classification
	PrimaryLesion         string

	SimilarPatterns []reasoning.ScoredPattern

	RiskLabel     string
	CriticalError bool

	FairnessScore float64

	Recommendation string

	EncryptedPayload contracts.EncryptedPayload
}

func (d *Deps) memory(runID string) *caseMemory {
	v, _ := d.scratch.LoadOrStore(runID, &caseMemory{})
	return v.(*caseMemory)
}

func (d *Deps) forget(runID string) {
	d.scratch.Delete(runID)
}

func (d *Deps) logger() platform.Logger {
	if d.Logger == nil {
		return platform.NoOpLogger{}
	}
	return d.Logger
}

// Bind builds the closed agent_id -> Executor map for every agent the
// catalogue references. The returned map is suitable as registry.New's
// argument directly.
func Bind(d *Deps) map[string]registry.Executor {
	return map[string]registry.Executor{
		catalogue.AgentSkinToneDetector:        d.skinToneDetector,
		catalogue.AgentStandardCalibrator:      d.standardCalibrator,
		catalogue.AgentSafetyCalibrator:        d.safetyCalibrator,
		catalogue.AgentPreprocessor:            d.preprocessor,
		catalogue.AgentSegmenter:               d.segmenter,
		catalogue.AgentFeatureExtractor:        d.featureExtractor,
		catalogue.AgentLesionDetector:          d.lesionDetector,
		catalogue.AgentSimilaritySearcher:      d.similaritySearcher,
		catalogue.AgentRiskAssessor:            d.riskAssessor,
		catalogue.AgentFairnessAuditor:         d.fairnessAuditor,
		catalogue.AgentRecommendationGenerator: d.recommendationGenerator,
		catalogue.AgentLearningAgent:           d.learningAgent,
		catalogue.AgentEncryptionAgent:         d.encryptionAgent,
		catalogue.AgentAuditCommitter:          d.auditCommitter,
	}
}

func inputFrom(inv registry.Invocation) (Input, bool) {
	in, ok := inv.Input.(Input)
	return in, ok
}
