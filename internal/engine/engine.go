// Package engine implements the Agent Execution Engine (C5): drives a
// plan to completion, invoking executors through the registry,
// enforcing per-agent timeouts, recording a structured trace, and
// triggering bounded replanning.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/action"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/planner"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/registry"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

var tracer = otel.Tracer("dermatology-goap-orchestrator/engine")

// Hooks lets a caller observe engine progress without coupling the
// engine to any particular trace sink (mirrors onAgentStart/onReplan
// style callbacks from §4.3; all fields optional).
type Hooks struct {
	OnAgentStart func(agentID, actionName string)
	OnAgentDone  func(rec AgentRecord)
	OnReplan     func(reason string, attempt int)
}

// Engine drives plans produced by a Planner through a Registry.
type Engine struct {
	planner          *planner.Planner
	registry         *registry.Registry
	perAgentTimeout  time.Duration
	maxReplans       int
	logger           platform.Logger
}

// New builds an Engine bound to p and reg.
func New(p *planner.Planner, reg *registry.Registry, perAgentTimeout time.Duration, maxReplans int, logger platform.Logger) *Engine {
	if logger == nil {
		logger = platform.NoOpLogger{}
	}
	return &Engine{planner: p, registry: reg, perAgentTimeout: perAgentTimeout, maxReplans: maxReplans, logger: logger}
}

// Execute runs initial->goal to completion, per the protocol in §4.3.
// input is threaded verbatim into every registry.Invocation as Input.
func (e *Engine) Execute(ctx context.Context, runID string, initial state.State, goal state.Predicate, input interface{}, hooks Hooks) (*ExecutionTrace, error) {
	ctx, span := tracer.Start(ctx, "engine.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	trace := &ExecutionTrace{RunID: runID, StartTime: time.Now(), goalHint: goal}
	e.logger.InfoWithContext(ctx, "run started", map[string]interface{}{"run_id": runID})

	plan, err := e.planner.Plan(initial, goal)
	if err != nil {
		if isGoalAlreadySatisfied(err) {
			trace.FinalState = initial
			trace.EndTime = time.Now()
			return trace, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "initial planning failed")
		e.logger.ErrorWithContext(ctx, "initial planning failed", map[string]interface{}{"run_id": runID, "error": err.Error()})
		return finalizeTrace(trace, initial, platform.Wrap("engine.Execute.plan", platform.KindPlanningFailure, runID, err))
	}

	cur := initial
	replans := 0
	idx := 0

	for idx < len(plan.Actions) {
		act := plan.Actions[idx]

		if hooks.OnAgentStart != nil {
			hooks.OnAgentStart(act.AgentID, act.ID)
		}
		recIdx := trace.append(AgentRecord{
			AgentID: act.AgentID, ActionName: act.ID,
			StartTs: time.Now(), Status: StatusRunning,
		})

		result, execErr := e.invoke(ctx, runID, act, cur, input)

		switch {
		case execErr == nil:
			cur = mergeUpdatesThenEffects(cur, result.StateUpdates, act)
			finalize(&trace.Agents[recIdx], StatusCompleted, result.Metadata)
			if hooks.OnAgentDone != nil {
				hooks.OnAgentDone(trace.Agents[recIdx])
			}

			if result.ShouldReplan {
				if err := e.replan(ctx, runID, trace, &cur, &plan, &idx, &replans, "executor requested replan", hooks); err != nil {
					span.RecordError(err)
					return finalizeTrace(trace, cur, err)
				}
				continue
			}
			idx++

		case isTimeout(execErr):
			finalize(&trace.Agents[recIdx], StatusTimedOut, map[string]interface{}{"category": "Timeout"})
			if hooks.OnAgentDone != nil {
				hooks.OnAgentDone(trace.Agents[recIdx])
			}
			if err := e.handleFailure(ctx, runID, act, trace, &cur, &plan, &idx, &replans, execErr, hooks); err != nil {
				return finalizeTrace(trace, cur, err)
			}

		default:
			finalize(&trace.Agents[recIdx], StatusFailed, map[string]interface{}{"category": classify(execErr), "sanitized_message": "executor failure"})
			if hooks.OnAgentDone != nil {
				hooks.OnAgentDone(trace.Agents[recIdx])
			}
			if err := e.handleFailure(ctx, runID, act, trace, &cur, &plan, &idx, &replans, execErr, hooks); err != nil {
				return finalizeTrace(trace, cur, err)
			}
		}
	}

	trace.FinalState = cur
	trace.EndTime = time.Now()
	span.SetStatus(codes.Ok, "")
	e.logger.InfoWithContext(ctx, "run completed", map[string]interface{}{"run_id": runID, "agents": len(trace.Agents)})
	return trace, nil
}

// handleFailure applies the action's failure_policy: fatal terminates
// the run, replan re-invokes the planner from the current state, skip
// advances past the failed action without applying its effects.
func (e *Engine) handleFailure(ctx context.Context, runID string, act action.Action, trace *ExecutionTrace, cur *state.State, plan *planner.Plan, idx *int, replans *int, cause error, hooks Hooks) error {
	switch act.FailurePolicy {
	case action.PolicySkip:
		*idx++
		return nil
	case action.PolicyReplan:
		return e.replan(ctx, runID, trace, cur, plan, idx, replans, fmt.Sprintf("recoverable failure: %v", cause), hooks)
	default:
		return platform.Wrap("engine.Execute", platform.KindExecutorFailure, runID, cause)
	}
}

func (e *Engine) replan(ctx context.Context, runID string, trace *ExecutionTrace, cur *state.State, plan *planner.Plan, idx *int, replans *int, reason string, hooks Hooks) error {
	if *replans >= e.maxReplans {
		return platform.Wrap("engine.replan", platform.KindReplanExhausted, runID, platform.ErrReplanExhausted)
	}
	*replans++
	e.logger.WarnWithContext(ctx, "replanning", map[string]interface{}{"run_id": runID, "reason": reason, "attempt": *replans})
	if hooks.OnReplan != nil {
		hooks.OnReplan(reason, *replans)
	}

	// Completed agents are immutable in the trace; only the suffix from
	// here is subject to replacement.
	goalForReplan := trace.goalHint
	newPlan, err := e.planner.Plan(*cur, goalForReplan)
	if err != nil {
		if isGoalAlreadySatisfied(err) {
			*plan = planner.Plan{}
			*idx = 0
			return nil
		}
		return platform.Wrap("engine.replan", platform.KindPlanningFailure, runID, err)
	}
	*plan = newPlan
	*idx = 0
	return nil
}

func (e *Engine) invoke(ctx context.Context, runID string, act action.Action, cur state.State, input interface{}) (registry.Result, error) {
	ex, err := e.registry.Lookup(act.AgentID)
	if err != nil {
		return registry.Result{}, err
	}

	invokeCtx, cancel := context.WithTimeout(ctx, e.perAgentTimeout)
	defer cancel()

	type outcome struct {
		result registry.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		res, err := ex(invokeCtx, registry.Invocation{RunID: runID, State: cur, Action: act.ID, AgentID: act.AgentID, Input: input})
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-invokeCtx.Done():
		return registry.Result{}, fmt.Errorf("%w: agent=%s", platform.ErrTimeout, act.AgentID)
	}
}

func mergeUpdatesThenEffects(cur state.State, updates state.Delta, act action.Action) state.State {
	// §4.3: state_updates merge first, then effects — effects always
	// win on conflict, so an executor can observe but never override
	// its own declared effect.
	merged := cur.Apply(updates)
	return merged.Apply(act.Effects)
}

func finalize(rec *AgentRecord, status AgentStatus, metadata map[string]interface{}) {
	rec.Status = status
	rec.EndTs = time.Now()
	rec.Metadata = metadata
}

func finalizeTrace(trace *ExecutionTrace, cur state.State, err error) (*ExecutionTrace, error) {
	trace.FinalState = cur
	trace.EndTime = time.Now()
	return trace, err
}

func isTimeout(err error) bool {
	return errors.Is(err, platform.ErrTimeout)
}

func classify(err error) string {
	switch {
	case platform.IsRetryableByExecutor(err):
		return "Unavailable"
	default:
		return "InternalFault"
	}
}

func isGoalAlreadySatisfied(err error) bool {
	return errors.Is(err, platform.ErrGoalAlreadySatisfied)
}
