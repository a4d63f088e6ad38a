package agents

import (
	"context"
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// fairnessAuditor scores the analysis for demographic fairness: a run
// whose skin-tone detection confidence cleared the safety calibration
// threshold is scored higher than one that required the conservative
// branch, since the latter indicates the classifier is working at the
// edge of its training distribution for this phototype.
func (d *Deps) fairnessAuditor(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	confidence := mem.ConfidenceScore
	mem.mu.Unlock()

	score := 0.6
	if confidence >= d.SafetyCalibrationThreshold {
		score = 0.9
	}
	if inv.State.Bool(state.KeySafetyCalibrated) {
		score -= 0.1
	}

	return registry.Result{
		Metadata:     map[string]interface{}{"fairness_score": score},
		StateUpdates: state.Delta{Fairness: &score},
	}, nil
}

// recommendationGenerator produces the patient-facing text. Under
// privacy mode the prompt omits every artifact derived from the raw
// image (labels, digests) and retains only the risk label, matching
// the privacy pipeline variant's retention rule (§4.2, router
// PipelineVariant "privacy").
func (d *Deps) recommendationGenerator(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	in, _ := inputFrom(inv)
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	lesion, risk := mem.PrimaryLesion, mem.RiskLabel
	mem.mu.Unlock()

	if d.Generator == nil {
		return registry.Result{}, fmt.Errorf("%w: generator not configured", platform.ErrExecutorUnavailable)
	}

	var prompt string
	if in.PrivacyMode {
		prompt = fmt.Sprintf("Risk level assessed as %s. Write a brief, reassuring next-steps recommendation with no reference to specific imaging findings.", risk)
	} else {
		prompt = fmt.Sprintf("Primary finding: %s. Risk level: %s. Write a concise patient-facing recommendation.", lesion, risk)
	}

	text, err := d.Generator.Generate(ctx, prompt, "You are a dermatology triage assistant writing for a patient audience.")
	if err != nil {
		return registry.Result{}, fmt.Errorf("%w: %v", platform.ErrExecutorUnavailable, err)
	}

	mem.mu.Lock()
	mem.Recommendation = text
	mem.mu.Unlock()

	return registry.Result{Metadata: map[string]interface{}{"recommendation_length": len(text)}}, nil
}
