package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/audit"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
)

// auditCommitter is the pipeline's last step, so its Result.Metadata is
// the only place left to surface the two values §6 says Run must
// return alongside the trace: the ledger entry just appended and the
// encrypted analysis payload encryptionAgent produced earlier in the
// same run. The orchestrator reads these back out of the trace's final
// agent record by these keys rather than widening registry.Result with
// domain-specific fields.
const (
	MetaKeyAuditEntry    = "audit_entry"
	MetaKeyResultPayload = "result_payload"
)

type analysisPayload struct {
	PrimaryLesion  string `json:"primary_lesion"`
	RiskLabel      string `json:"risk_label"`
	Recommendation string `json:"recommendation"`
}

// encryptionAgent encrypts the assembled analysis payload under a
// run-scoped ephemeral key and zeroes the key immediately after use
// (§5 ephemeral-key lifecycle) — the key itself is never persisted.
func (d *Deps) encryptionAgent(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	if d.Crypto == nil {
		return registry.Result{}, fmt.Errorf("%w: crypto capability not configured", platform.ErrExecutorUnavailable)
	}
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	payload := analysisPayload{PrimaryLesion: mem.PrimaryLesion, RiskLabel: mem.RiskLabel, Recommendation: mem.Recommendation}
	mem.mu.Unlock()

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return registry.Result{}, fmt.Errorf("encryption agent: marshal payload: %w", err)
	}

	key, err := d.Crypto.GenerateEphemeralKey()
	if err != nil {
		return registry.Result{}, fmt.Errorf("%w: %v", platform.ErrExecutorUnavailable, err)
	}
	defer key.Zero()

	encrypted, err := d.Crypto.Encrypt(key, plaintext)
	if err != nil {
		return registry.Result{}, fmt.Errorf("%w: %v", platform.ErrExecutorUnavailable, err)
	}

	mem.mu.Lock()
	mem.EncryptedPayload = encrypted
	mem.mu.Unlock()

	return registry.Result{Metadata: map[string]interface{}{"ciphertext_bytes": len(encrypted.Ciphertext)}}, nil
}

// auditCommitter appends the terminal, hash-chained ledger entry for
// this run and releases the run's scratch working memory — this is the
// last step in the pipeline's DAG, so nothing downstream still needs
// it.
func (d *Deps) auditCommitter(ctx context.Context, inv registry.Invocation) (registry.Result, error) {
	if d.Ledger == nil {
		return registry.Result{}, fmt.Errorf("%w: audit ledger not configured", platform.ErrExecutorUnavailable)
	}
	in, _ := inputFrom(inv)
	mem := d.memory(inv.RunID)
	mem.mu.Lock()
	lesion, risk, critical := mem.PrimaryLesion, mem.RiskLabel, mem.CriticalError
	confidence := mem.ConfidenceScore
	payload := mem.EncryptedPayload
	mem.mu.Unlock()
	defer d.forget(inv.RunID)

	traceDigest := d.Crypto.SHA256(payload.Ciphertext)
	imageDigest := d.Crypto.SHA256(in.ImageBytes)
	level := audit.ClassifySafety(critical, lesion, risk, confidence)

	entry, err := d.Ledger.Append(ctx, audit.EventAnalysisCompleted, traceDigest, imageDigest, level)
	if err != nil {
		return registry.Result{}, fmt.Errorf("audit committer: append: %w", err)
	}

	meta := map[string]interface{}{
		"safety_level":       level.String(),
		"degraded":           entry.Degraded,
		MetaKeyAuditEntry:    entry,
		MetaKeyResultPayload: payload,
	}
	return registry.Result{Metadata: meta}, nil
}
