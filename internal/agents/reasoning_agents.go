package agents

import (
	"context"
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/reasoning"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// similaritySearcher consults the reasoning bank for prior cases whose
// feature embedding resembles this run's, filtered to the same task
// type and detected phototype so comparisons stay within like cases.
func (d *Deps) similaritySearcher(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	if d.Bank == nil {
		return registry.Result{}, fmt.Errorf("%w: reasoning bank not configured", platform.ErrExecutorUnavailable)
	}
	in, _ := inputFrom(inv)
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	embedding := mem.FeatureEmbedding
	fitz := mem.FitzpatrickLabel
	mem.mu.Unlock()

	if len(embedding) == 0 {
		return registry.Result{}, fmt.Errorf("%w: similarity search requires a feature embedding", platform.ErrExecutorInputRejected)
	}

	matches, err := d.Bank.Search(ctx, reasoning.SearchQuery{
		Embedding: embedding,
		K:         10,
		Filter:    reasoning.Filter{TaskType: in.TaskType, Fitzpatrick: fitz},
	})
	if err != nil {
		return registry.Result{}, fmt.Errorf("%w: %v", platform.ErrExecutorUnavailable, err)
	}

	mem.mu.Lock()
	mem.SimilarPatterns = matches
	mem.mu.Unlock()

	return registry.Result{Metadata: map[string]interface{}{"matches": len(matches)}}, nil
}

// riskAssessor combines the lesion classification with precedent from
// the reasoning bank into a deterministic risk label, matching the
// classifier the audit ledger uses at commit time (§4.5).
func (d *Deps) riskAssessor(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	lesion := mem.PrimaryLesion
	matches := mem.SimilarPatterns
	mem.mu.Unlock()

	var precedentSuccess float64
	if len(matches) > 0 {
		var sum float64
		for _, m := range matches {
			sum += m.Pattern.SuccessRate
		}
		precedentSuccess = sum / float64(len(matches))
	}

	label := "Low"
	critical := false
	switch {
	case lesion == "Melanoma" && precedentSuccess < 0.5:
		label = "High"
		critical = true
	case lesion == "Melanoma":
		label = "High"
	case precedentSuccess < 0.4:
		label = "Medium"
	}

	mem.mu.Lock()
	mem.RiskLabel = label
	mem.CriticalError = critical
	mem.mu.Unlock()

	return registry.Result{Metadata: map[string]interface{}{"risk_label": label, "precedent_success_rate": precedentSuccess}}, nil
}

// learningAgent commits this run's approach and outcome as a new,
// immutable reasoning pattern. A reanalyze run additionally stores a
// second pattern tagged as a correction rather than mutating the
// original (§9 open question ii: patterns are never updated in place).
func (d *Deps) learningAgent(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	if d.Bank == nil {
		return registry.Result{}, fmt.Errorf("%w: reasoning bank not configured", platform.ErrExecutorUnavailable)
	}
	in, _ := inputFrom(inv)
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	embedding := mem.FeatureEmbedding
	fitz := mem.FitzpatrickLabel
	lesion := mem.PrimaryLesion
	risk := mem.RiskLabel
	mem.mu.Unlock()

	approach := "standard"
	if inv.State.Bool(state.KeySafetyCalibrated) {
		approach = "safety"
	}

	ts := int64(0)
	if d.Clock != nil {
		ts = d.Clock.NowMs()
	}

	pattern := reasoning.Pattern{
		TaskType:    in.TaskType,
		Approach:    approach,
		Outcome:     lesion,
		SuccessRate: 1.0,
		Timestamp:   ts,
		Metadata:    map[string]interface{}{"fitzpatrick": fitz, "risk_label": risk, "analysis_id": in.AnalysisID},
		Embedding:   embedding,
	}
	id, err := d.Bank.Store(pattern, reasoning.StoreOptions{Durable: true})
	if err != nil {
		return registry.Result{}, fmt.Errorf("learning agent: store pattern: %w", err)
	}

	ids := []string{id}
	if in.TaskType == "reanalyze" {
		correction := pattern
		correction.ID = ""
		correction.Metadata = map[string]interface{}{
			"fitzpatrick": fitz, "risk_label": risk, "analysis_id": in.AnalysisID,
			"isCorrection": true, "supersedes": id,
		}
		corrID, err := d.Bank.Store(correction, reasoning.StoreOptions{Durable: true})
		if err != nil {
			return registry.Result{}, fmt.Errorf("learning agent: store correction pattern: %w", err)
		}
		ids = append(ids, corrID)
	}

	return registry.Result{Metadata: map[string]interface{}{"pattern_ids": ids}}, nil
}
