package agents

import (
	"context"
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/contracts"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

var fitzByLabel = map[string]state.FitzpatrickType{
	"I": state.FitzI, "II": state.FitzII, "III": state.FitzIII,
	"IV": state.FitzIV, "V": state.FitzV, "VI": state.FitzVI,
}

func topClassification(cs []contracts.Classification) (contracts.Classification, bool) {
	return topClassificationMatching(cs, nil)
}

// topClassificationMatching returns the highest-scoring classification
// whose label passes allowed (nil accepts every label). A
// VisionSpecialist may return a combined list covering more than one
// concern per call (phototype and lesion labels together); the caller
// narrows to the labels it understands rather than trusting raw score
// order alone.
func topClassificationMatching(cs []contracts.Classification, allowed func(label string) bool) (contracts.Classification, bool) {
	var best contracts.Classification
	found := false
	for _, c := range cs {
		if allowed != nil && !allowed(c.Label) {
			continue
		}
		if !found || c.Score > best.Score {
			best = c
			found = true
		}
	}
	return best, found
}

func isFitzpatrickLabel(label string) bool {
	_, ok := fitzByLabel[label]
	return ok
}

// skinToneDetector classifies the input image's Fitzpatrick phototype
// and records whether confidence falls below the configured threshold,
// which gates the planner's calibration branch (§4.2).
func (d *Deps) skinToneDetector(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	in, ok := inputFrom(inv)
	if !ok || len(in.ImageBytes) == 0 {
		return registry.Result{}, fmt.Errorf("%w: skin_tone_detector requires image bytes", platform.ErrExecutorInputRejected)
	}
	if d.Vision == nil {
		return registry.Result{}, fmt.Errorf("%w: vision specialist not configured", platform.ErrExecutorUnavailable)
	}

	classifications, err := d.Vision.Classify(ctx, in.ImageBytes)
	if err != nil {
		return registry.Result{}, fmt.Errorf("%w: %v", platform.ErrExecutorUnavailable, err)
	}
	top, found := topClassificationMatching(classifications, isFitzpatrickLabel)
	if !found {
		top, found = topClassification(classifications)
	}
	if !found {
		return registry.Result{}, fmt.Errorf("%w: vision specialist returned no classification", platform.ErrExecutorInputRejected)
	}

	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	mem.SkinToneClassifications = classifications
	mem.FitzpatrickLabel = top.Label
	mem.ConfidenceScore = top.Score
	mem.mu.Unlock()

	lowConfidence := top.Score < d.ConfidenceLowThreshold
	fitz := fitzByLabel[top.Label]
	conf := top.Score

	d.logger().Debug("skin tone detected", map[string]interface{}{
		"run_id": inv.RunID, "label": top.Label, "confidence": top.Score, "low_confidence": lowConfidence,
	})

	// §8 property 7 / scenario S-B: low confidence forces a replan so the
	// planner can substitute the safety-calibration branch for the
	// standard one already queued in the current plan suffix.
	return registry.Result{
		Metadata: map[string]interface{}{"label": top.Label, "confidence": top.Score},
		StateUpdates: state.Delta{
			Bools:       map[string]bool{state.KeyIsLowConfidence: lowConfidence},
			Fitzpatrick: &fitz,
			Confidence:  &conf,
		},
		ShouldReplan: lowConfidence,
	}, nil
}

// standardCalibrator is the fast-path calibration branch used once skin
// tone confidence clears the threshold. It applies no colour/exposure
// transform and makes no model call: it is a no-op branch whose only job is to exist
// as the counterpart to safetyCalibrator in the planner's search space.
func (d *Deps) standardCalibrator(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	return registry.Result{Metadata: map[string]interface{}{"branch": "standard"}}, nil
}

// safetyCalibrator is the conservative branch taken when skin-tone
// detection confidence is low. It asks the generator for a calibration
// note describing the uncertainty so it can be surfaced to a reviewer;
// a generator failure never fails the run — the branch's state effect
// is what the planner needs, the note is best-effort enrichment.
func (d *Deps) safetyCalibrator(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	label, conf := mem.FitzpatrickLabel, mem.ConfidenceScore
	mem.mu.Unlock()

	meta := map[string]interface{}{"branch": "safety"}
	if d.Generator != nil {
		note, err := d.Generator.Generate(ctx,
			fmt.Sprintf("Skin tone detection confidence was low (label=%s score=%.2f). Draft a one-sentence calibration caveat for the reviewer.", label, conf),
			"You are a cautious dermatology imaging assistant.",
		)
		if err != nil {
			d.logger().Warn("safety calibrator generator unavailable", map[string]interface{}{"run_id": inv.RunID, "error": err.Error()})
		} else {
			meta["calibration_note"] = note
		}
	}
	return registry.Result{Metadata: meta}, nil
}
