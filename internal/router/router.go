// Package router implements the Router (C8): a pure function from
// input intent to the goal-state variant and specialist pipeline the
// planner should target.
package router

import "github.com/do-ops885/dermatology-goap-orchestrator/internal/state"

// ArtifactKind is the declared kind of the run's input artifact.
type ArtifactKind string

const (
	ArtifactImage ArtifactKind = "image"
)

// Action is the requested operation on the artifact.
type Action string

const (
	ActionAnalyze      Action = "analyze"
	ActionReanalyze    Action = "reanalyze"
	ActionPrivacyScan  Action = "privacy_scan"
)

// Request is Router.Route's input.
type Request struct {
	ArtifactKind ArtifactKind
	Action       Action
	PrivacyMode  bool
}

// Intent selects the goal predicate and pipeline variant a run should
// target. PrivacyMode is Router's own decision, derived from both
// Request.PrivacyMode and Request.Action — callers downstream of
// Route must read it from here rather than re-deriving it from the
// raw Request, so Router remains the single place that decides which
// pipeline variant a run takes.
type Intent struct {
	Goal            state.Predicate
	PipelineVariant string
	PrivacyMode     bool
}

// standardGoal is the canonical end-to-end goal: audit_logged set,
// which the catalogue reaches only after every pipeline step, through
// calibrate_standard or calibrate_safety depending on skin-tone
// confidence (§4.2). privacyGoal targets the
// identical terminal state — the catalogue has a single linear DAG to
// audit_logged, so no variant skips a step — but is declared
// separately so a future privacy-specific action (e.g. one that skips
// commit_learning) has a goal to attach to without touching the
// standard variant.
var standardGoal = state.And(
	state.Bool(state.KeyAuditLogged, true),
)

var privacyGoal = state.And(
	state.Bool(state.KeyAuditLogged, true),
)

// reanalyzeGoal is the goal for a correction run; identical target to
// standardGoal today, kept distinct for the same forward-compatibility
// reason as privacyGoal.
var reanalyzeGoal = state.And(
	state.Bool(state.KeyAuditLogged, true),
)

// Route is a pure function: no side effects, deterministic output for
// identical input. It is the only place that decides a run's
// PrivacyMode and pipeline variant — callers must not bypass it by
// threading Request.PrivacyMode straight into executor input.
func Route(req Request) Intent {
	variant := "standard"
	switch {
	case req.Action == ActionPrivacyScan, req.PrivacyMode:
		variant = "privacy"
	case req.Action == ActionReanalyze:
		variant = "reanalyze"
	}

	var goal state.Predicate
	switch variant {
	case "privacy":
		goal = privacyGoal
	case "reanalyze":
		goal = reanalyzeGoal
	default:
		goal = standardGoal
	}

	return Intent{Goal: goal, PipelineVariant: variant, PrivacyMode: variant == "privacy"}
}
