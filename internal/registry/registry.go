// Package registry implements the Executor Registry (C4): a static
// agent_id -> executor map, closed at startup.
package registry

import (
	"context"
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// Result is what an executor reports back to the engine: metadata for
// the trace, optional state updates that are merged before the
// action's own effects, and an optional replan request.
type Result struct {
	Metadata      map[string]interface{}
	StateUpdates  state.Delta
	ShouldReplan  bool
}

// Invocation is the bounded context an executor receives: the run's
// current state snapshot alongside the standard context.Context for
// cancellation/deadline. Input carries the run's original, executor-
// agnostic payload (image bytes, mime, privacy flag, analysis id); its
// concrete type is agreed between the engine's caller and the
// executors, not by this package.
type Invocation struct {
	RunID   string
	State   state.State
	Action  string
	AgentID string
	Input   interface{}
}

// Executor is the function type bound to an agent id. It must return
// promptly on ctx cancellation/deadline per the cooperative-cancellation
// contract in §5.
type Executor func(ctx context.Context, inv Invocation) (Result, error)

// Registry is a closed, immutable agent_id -> Executor map.
type Registry struct {
	executors map[string]Executor
}

// New builds a Registry from a map of bindings. Once built the registry
// never accepts new bindings — missing bindings for catalogue agents
// are caught at catalogue-validation time, not here.
func New(bindings map[string]Executor) *Registry {
	out := make(map[string]Executor, len(bindings))
	for k, v := range bindings {
		out[k] = v
	}
	return &Registry{executors: out}
}

// Lookup returns the executor bound to agentID, or an error if none is
// registered — a startup-time fatal condition per §4.7.
func (r *Registry) Lookup(agentID string) (Executor, error) {
	ex, ok := r.executors[agentID]
	if !ok {
		return nil, fmt.Errorf("executor registry: no executor bound for agent %q", agentID)
	}
	return ex, nil
}

// Registered returns the set of agent ids with a bound executor, used
// by action.NewCatalogue's validation rule 4.
func (r *Registry) Registered() map[string]bool {
	out := make(map[string]bool, len(r.executors))
	for k := range r.executors {
		out[k] = true
	}
	return out
}
