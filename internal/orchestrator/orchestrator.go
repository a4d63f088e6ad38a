// Package orchestrator wires the individually-testable components
// (planner, engine, registry, reasoning bank, audit ledger, router)
// into the single object the CLI drives: this is the composition root,
// not a component in its own right.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/action"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/agents"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/audit"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/backends"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/catalogue"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/contracts"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/engine"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/planner"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/reasoning"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/router"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// Orchestrator owns every long-lived handle a run needs: the reasoning
// bank and audit ledger are process-wide shared resources (§5), opened
// once here and reused across runs.
type Orchestrator struct {
	cfg    *platform.Config
	random contracts.Random
	crypto contracts.Crypto

	bank   *reasoning.Bank
	ledger *audit.Ledger

	engine *engine.Engine
}

// New builds an Orchestrator from cfg, opening the reasoning bank and
// audit ledger under cfg.DataDir and binding the default local
// backends (§6) as the vision/generator/embedder capabilities.
func New(cfg *platform.Config) (*Orchestrator, error) {
	logger := cfg.Logger()
	crypto := contracts.AESGCMCrypto{}
	clock := contracts.SystemClock{}
	random := contracts.UUIDRandom{}

	bank, err := reasoning.Open(
		filepath.Join(cfg.DataDir, "reasoning"),
		cfg.ReasoningBankDim, cfg.MaxPatternsBruteForce, cfg.PersistenceFlushInterval,
		backends.LocalEmbedder{Dim: cfg.ReasoningBankDim}, cfg.RedisURL, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open reasoning bank: %w", err)
	}

	notifier := backends.LocalNotifier{Log: func(record contracts.AlertRecord) {
		logger.Warn("safety alert", map[string]interface{}{"safety_level": record.SafetyLevel, "reason": record.Reason})
	}}

	ledger, err := audit.Open(filepath.Join(cfg.DataDir, "audit.log"), crypto, clock, notifier, logger)
	if err != nil {
		_ = bank.Close()
		return nil, fmt.Errorf("orchestrator: open audit ledger: %w", err)
	}

	deps := &agents.Deps{
		Vision:                     backends.LocalVision{},
		Generator:                  backends.LocalGenerator{},
		Embedder:                   backends.LocalEmbedder{Dim: cfg.ReasoningBankDim},
		Crypto:                     crypto,
		Notifier:                   notifier,
		Clock:                      clock,
		Random:                     random,
		Bank:                       bank,
		Ledger:                     ledger,
		Logger:                     logger,
		ConfidenceLowThreshold:     cfg.ConfidenceLowThreshold,
		SafetyCalibrationThreshold: cfg.SafetyCalibrationThreshold,
	}

	reg := registry.New(agents.Bind(deps))
	cat, err := action.NewCatalogue(catalogue.Actions(), reg.Registered())
	if err != nil {
		_ = bank.Close()
		return nil, fmt.Errorf("orchestrator: validate catalogue: %w", err)
	}

	p := planner.New(cat, cfg.MaxExpansions, cfg.PlanDeadline)
	e := engine.New(p, reg, cfg.PerAgentTimeout, cfg.MaxReplans, logger)

	return &Orchestrator{cfg: cfg, random: random, crypto: crypto, bank: bank, ledger: ledger, engine: e}, nil
}

// Bank exposes the reasoning bank for read-only operator diagnostics
// (`orchctl patterns dump`); the orchestration pipeline itself only
// ever reaches it through agents.Deps.
func (o *Orchestrator) Bank() *reasoning.Bank {
	return o.bank
}

// Close releases the reasoning bank's handles. The audit ledger holds no
// open file between appends, so there is nothing of it to close.
func (o *Orchestrator) Close() error {
	if err := o.bank.Close(); err != nil {
		return err
	}
	return nil
}

// Request is one end-to-end run's input: the artifact plus the
// operation the router should select a pipeline variant for.
type Request struct {
	Image       []byte
	ImageMime   string
	Action      router.Action
	PrivacyMode bool
	AnalysisID  string
}

// RunResult is Run's output per §6 ("Run outputs"): the execution
// trace, the ledger entry the run contributed, and the encrypted
// analysis payload a successful run produced. AuditEntry is always
// populated (a halted run still contributes exactly one entry, §7);
// ResultPayload is the zero value for a halted run, since no analysis
// was ever encrypted.
type RunResult struct {
	Trace         *engine.ExecutionTrace
	AuditEntry    audit.Entry
	ResultPayload contracts.EncryptedPayload
}

// Run executes one complete analysis to completion, returning the
// execution trace (§4.3) the CLI renders alongside the ledger entry and
// encrypted payload the run produced. Per §6/§7, a magic-byte mismatch
// rejects with InvalidArtifact before any plan is attempted and before
// the run contributes an audit entry (scenario S-C); any other fatal
// failure still commits exactly one ANALYSIS_HALTED ledger entry (§7),
// even though the run itself failed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (RunResult, error) {
	if err := contracts.ValidateArtifact(req.ImageMime, req.Image); err != nil {
		return RunResult{}, err
	}

	intent := router.Route(router.Request{
		ArtifactKind: router.ArtifactImage,
		Action:       req.Action,
		PrivacyMode:  req.PrivacyMode,
	})

	input := agents.Input{
		ImageBytes:      req.Image,
		ImageMime:       req.ImageMime,
		PrivacyMode:     intent.PrivacyMode,
		PipelineVariant: intent.PipelineVariant,
		AnalysisID:      req.AnalysisID,
		TaskType:        string(req.Action),
	}

	runID := o.random.UUID()
	trace, err := o.engine.Execute(ctx, runID, state.New(), intent.Goal, input, engine.Hooks{})
	if err != nil {
		entry := o.commitHalted(ctx, runID, trace, req.Image)
		return RunResult{Trace: trace, AuditEntry: entry}, err
	}
	return RunResult{Trace: trace, AuditEntry: auditEntryFromTrace(trace), ResultPayload: resultPayloadFromTrace(trace)}, nil
}

// auditEntryFromTrace and resultPayloadFromTrace recover the two values
// auditCommitter (the pipeline's terminal step) stashed in its own
// AgentRecord's Metadata, since registry.Result has no dedicated field
// for either — see agents.MetaKeyAuditEntry/MetaKeyResultPayload.
func auditEntryFromTrace(trace *engine.ExecutionTrace) audit.Entry {
	if trace == nil || len(trace.Agents) == 0 {
		return audit.Entry{}
	}
	last := trace.Agents[len(trace.Agents)-1]
	entry, _ := last.Metadata[agents.MetaKeyAuditEntry].(audit.Entry)
	return entry
}

func resultPayloadFromTrace(trace *engine.ExecutionTrace) contracts.EncryptedPayload {
	if trace == nil || len(trace.Agents) == 0 {
		return contracts.EncryptedPayload{}
	}
	last := trace.Agents[len(trace.Agents)-1]
	payload, _ := last.Metadata[agents.MetaKeyResultPayload].(contracts.EncryptedPayload)
	return payload
}

// commitHalted appends the terminal ANALYSIS_HALTED entry a failed run
// still owes the ledger (§7: "every run, successful or not, contributes
// exactly one ledger entry"), returning the entry it appended. A
// failure here is logged and returns the zero Entry, never surfaced as
// an error, since the run has already failed for its own reason.
func (o *Orchestrator) commitHalted(ctx context.Context, runID string, trace *engine.ExecutionTrace, image []byte) audit.Entry {
	if o.ledger == nil || trace == nil {
		return audit.Entry{}
	}
	traceDigest := o.crypto.SHA256([]byte(runID + ":" + haltedAgentSummary(trace)))
	imageDigest := o.crypto.SHA256(image)
	entry, err := o.ledger.Append(ctx, audit.EventAnalysisHalted, traceDigest, imageDigest, audit.SafetyHigh)
	if err != nil {
		o.cfg.Logger().Warn("failed to commit halted audit entry", map[string]interface{}{"run_id": runID, "error": err.Error()})
		return audit.Entry{}
	}
	return entry
}

// haltedAgentSummary builds a deterministic digest input from the
// trace's agent statuses, standing in for the `result_payload` a
// completed run would otherwise have encrypted and digested.
func haltedAgentSummary(trace *engine.ExecutionTrace) string {
	var b []byte
	for _, rec := range trace.Agents {
		b = append(b, []byte(rec.AgentID+":"+string(rec.Status)+";")...)
	}
	return string(b)
}

// VerifyAuditLog walks the ledger at path and returns the index of the
// first broken entry, or -1 if the chain verifies end to end.
func VerifyAuditLog(path string) (int, error) {
	return audit.Verify(path, contracts.AESGCMCrypto{})
}

// DumpCatalogue renders the static action catalogue as YAML for
// operator inspection.
func DumpCatalogue() ([]byte, error) {
	return catalogue.DumpYAML(catalogue.Actions())
}
