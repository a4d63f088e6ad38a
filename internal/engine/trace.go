package engine

import (
	"time"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// AgentStatus is the lifecycle state of a single AgentRecord.
type AgentStatus string

const (
	StatusRunning   AgentStatus = "running"
	StatusCompleted AgentStatus = "completed"
	StatusFailed    AgentStatus = "failed"
	StatusSkipped   AgentStatus = "skipped"
	StatusTimedOut  AgentStatus = "timed_out"
	StatusCancelled AgentStatus = "cancelled"
)

// AgentRecord is one entry in an ExecutionTrace. Once Status moves away
// from StatusRunning the record never mutates again.
type AgentRecord struct {
	AgentID    string
	ActionName string
	StartTs    time.Time
	EndTs      time.Time
	Status     AgentStatus
	Metadata   map[string]interface{}
}

// ExecutionTrace is the append-only record of one run.
type ExecutionTrace struct {
	RunID      string
	StartTime  time.Time
	EndTime    time.Time
	Agents     []AgentRecord
	FinalState state.State

	// goalHint carries the run's goal so a replan can re-invoke the
	// planner against the same target; not part of the public record.
	goalHint state.Predicate
}

// append adds a record, returning its index for later in-place
// finalisation (only the running record at the tail may still mutate).
func (t *ExecutionTrace) append(r AgentRecord) int {
	t.Agents = append(t.Agents, r)
	return len(t.Agents) - 1
}
