// Package action defines the static Action record and the catalogue
// validation rules the planner relies on for DAG-by-construction
// termination.
package action

import (
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// FailurePolicy governs what the execution engine does when an
// executor's invocation fails.
type FailurePolicy string

const (
	PolicyFatal  FailurePolicy = "fatal"
	PolicyReplan FailurePolicy = "replan"
	PolicySkip   FailurePolicy = "skip"
)

// Action is the declarative record consumed by the planner: a named
// agent invocation with preconditions, effects, and a cost used for
// A* edge weights.
type Action struct {
	ID              string
	AgentID         string
	Description     string
	Preconditions   state.Predicate
	Effects         state.Delta
	Cost            float64
	DurationHintMs  int64
	FailurePolicy   FailurePolicy
}

// Applicable reports whether a's precondition holds on s.
func (a Action) Applicable(s state.State) bool {
	return a.Preconditions.Eval(s)
}

// Apply returns the state reached by applying a's effects to s.
func (a Action) Apply(s state.State) state.State {
	return s.Apply(a.Effects)
}

// Catalogue is a validated, static set of Actions. It is built once at
// startup via NewCatalogue and never mutated afterward.
type Catalogue struct {
	actions []Action
}

// NewCatalogue validates actions per §4.2 and returns an immutable
// Catalogue. registeredAgents is the set of agent ids with a bound
// executor (C4); rule 4 requires every action's agent to appear in it.
func NewCatalogue(actions []Action, registeredAgents map[string]bool) (*Catalogue, error) {
	seen := make(map[string]bool, len(actions))
	for _, a := range actions {
		key := a.AgentID + "/" + a.ID
		if seen[key] {
			return nil, fmt.Errorf("%w: agent=%s action=%s", platform.ErrDuplicateAction, a.AgentID, a.ID)
		}
		seen[key] = true

		if !registeredAgents[a.AgentID] {
			return nil, fmt.Errorf("%w: agent=%s", platform.ErrExecutorNotRegistered, a.AgentID)
		}

		if err := validateMonotonic(a); err != nil {
			return nil, err
		}

		if a.FailurePolicy == "" {
			a.FailurePolicy = PolicyFatal
		}
		if a.Cost <= 0 {
			return nil, fmt.Errorf("action %s/%s: cost must be positive", a.AgentID, a.ID)
		}
	}
	return &Catalogue{actions: actions}, nil
}

// validateMonotonic rejects any action whose effects clear a completion
// flag — the catalogue must never declare a regressing action, even
// though State.Apply would also refuse to honour it at runtime. It does
// not check that an effect sets a previously-false flag or narrows a
// value domain, and it does not inspect non-completion keys.
func validateMonotonic(a Action) error {
	for k, v := range a.Effects.Bools {
		if state.IsCompletionFlag(k) && !v {
			return fmt.Errorf("%w: action %s/%s clears completion flag %s", platform.ErrNonMonotonicEffect, a.AgentID, a.ID, k)
		}
	}
	return nil
}

// Actions returns the catalogue's actions in declaration order.
func (c *Catalogue) Actions() []Action {
	out := make([]Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// ApplicableFrom returns every action in the catalogue whose
// precondition holds on s — the planner's edge-expansion step.
func (c *Catalogue) ApplicableFrom(s state.State) []Action {
	var out []Action
	for _, a := range c.actions {
		if a.Applicable(s) {
			out = append(out, a)
		}
	}
	return out
}
