package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/engine"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/router"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg, err := platform.NewConfig(
		platform.WithDataDir(t.TempDir()),
		platform.WithReasoningBankDimension(8),
		platform.WithLogger(platform.NoOpLogger{}),
	)
	require.NoError(t, err)

	o, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

// jpegBytes/pngBytes prepend valid magic-byte signatures to otherwise
// arbitrary test payloads, so Run's artifact validation accepts them.
func jpegBytes(tail string) []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte(tail)...)
}

func pngBytes(tail string) []byte {
	return append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte(tail)...)
}

func TestOrchestrator_RunCompletesAndAuditsEveryStep(t *testing.T) {
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{
		Image: jpegBytes("a deterministic test image"), ImageMime: "image/jpeg",
		Action: router.ActionAnalyze, AnalysisID: "a1",
	})
	require.NoError(t, err)
	trace := res.Trace
	assert.True(t, trace.FinalState.Bool(state.KeyAuditLogged))
	assert.NotZero(t, res.AuditEntry.Ts)
	assert.NotEmpty(t, res.ResultPayload.Ciphertext)
	assert.Equal(t, "AES-GCM-256", res.ResultPayload.Algorithm)
	assert.Equal(t, len(res.ResultPayload.Ciphertext), res.ResultPayload.PayloadSize)

	for _, rec := range trace.Agents {
		assert.Equal(t, engine.StatusCompleted, rec.Status, rec.AgentID)
	}
}

func TestOrchestrator_PrivacyModeRuns(t *testing.T) {
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{
		Image: pngBytes("privacy image"), ImageMime: "image/png",
		Action: router.ActionPrivacyScan, PrivacyMode: true, AnalysisID: "a2",
	})
	require.NoError(t, err)
	assert.True(t, res.Trace.FinalState.Bool(state.KeyAuditLogged))
}

func TestOrchestrator_VerifyAuditLogAfterRuns(t *testing.T) {
	o := newTestOrchestrator(t)
	_, err := o.Run(context.Background(), Request{Image: jpegBytes("one"), ImageMime: "image/jpeg", Action: router.ActionAnalyze, AnalysisID: "a3"})
	require.NoError(t, err)
	_, err = o.Run(context.Background(), Request{Image: jpegBytes("two"), ImageMime: "image/jpeg", Action: router.ActionAnalyze, AnalysisID: "a4"})
	require.NoError(t, err)

	idx, err := VerifyAuditLog(filepath.Join(o.cfg.DataDir, "audit.log"))
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}

// TestOrchestrator_InvalidMagicBytesRejectsBeforePlanning covers
// scenario S-C: a declared image/jpeg mime whose payload actually
// carries the PNG signature must reject with InvalidArtifact before
// any plan is attempted, and must not grow the audit log.
func TestOrchestrator_InvalidMagicBytesRejectsBeforePlanning(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.Run(context.Background(), Request{
		Image: pngBytes("mislabeled"), ImageMime: "image/jpeg",
		Action: router.ActionAnalyze, AnalysisID: "a5",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrInvalidArtifact)

	idx, err := VerifyAuditLog(filepath.Join(o.cfg.DataDir, "audit.log"))
	require.NoError(t, err)
	assert.Equal(t, -1, idx, "no ledger entry should exist yet")
}

// lowConfidenceJPEGTail is a fixture tail byte string whose SHA-256
// digest, under backends.LocalVision's deterministic score derivation
// (score = 0.5 + digest[2]/512), falls below the default 0.65
// confidence threshold — precomputed offline so this test never has to
// search for one at run time.
const lowConfidenceJPEGTail = "low-confidence-fixture-0"

// TestOrchestrator_LowConfidenceReplansToSafetyBranch covers scenario
// S-B end to end through the real pipeline: skin-tone detection on a
// deliberately low-confidence fixture requests a replan, and the
// executed plan substitutes Safety-Calibration for Standard-Calibration.
func TestOrchestrator_LowConfidenceReplansToSafetyBranch(t *testing.T) {
	o := newTestOrchestrator(t)

	res, err := o.Run(context.Background(), Request{
		Image: jpegBytes(lowConfidenceJPEGTail), ImageMime: "image/jpeg",
		Action: router.ActionAnalyze, AnalysisID: "a6",
	})
	require.NoError(t, err)
	trace := res.Trace
	assert.True(t, trace.FinalState.Bool(state.KeyIsLowConfidence))
	assert.True(t, trace.FinalState.Bool(state.KeySafetyCalibrated))

	var sawSafety, sawStandard bool
	for _, rec := range trace.Agents {
		switch rec.ActionName {
		case "calibrate_safety":
			sawSafety = true
		case "calibrate_standard":
			sawStandard = true
		}
	}
	assert.True(t, sawSafety, "expected the safety-calibration branch to run")
	assert.False(t, sawStandard, "standard-calibration should have been replaced by the replan")
}

// TestOrchestrator_ReplanExhaustionStillCommitsHaltedEntry covers
// scenario S-E: with MaxReplans exhausted immediately, the single
// replan the low-confidence fixture demands is fatal, but the run
// still contributes exactly one ANALYSIS_HALTED ledger entry (§7).
func TestOrchestrator_ReplanExhaustionStillCommitsHaltedEntry(t *testing.T) {
	cfg, err := platform.NewConfig(
		platform.WithDataDir(t.TempDir()),
		platform.WithReasoningBankDimension(8),
		platform.WithLogger(platform.NoOpLogger{}),
		platform.WithMaxReplans(0),
	)
	require.NoError(t, err)
	o, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })

	res, err := o.Run(context.Background(), Request{
		Image: jpegBytes(lowConfidenceJPEGTail), ImageMime: "image/jpeg",
		Action: router.ActionAnalyze, AnalysisID: "a7",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrReplanExhausted)
	assert.NotZero(t, res.AuditEntry.Ts, "a halted run must still surface the entry it committed")
	assert.Empty(t, res.ResultPayload.Ciphertext, "a halted run never encrypted a payload")

	idx, verr := VerifyAuditLog(filepath.Join(cfg.DataDir, "audit.log"))
	require.NoError(t, verr)
	assert.Equal(t, -1, idx, "the halted entry must itself verify")
}
