// Package planner implements the A* goal-oriented action planner (C3):
// minimum-cost action sequences over a WorldState graph. Catalogue
// validation rejects any effect that clears a completion flag; it does
// not require every effect to advance one.
package planner

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/action"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/state"
)

// Plan is a finite ordered sequence of Actions; Cost is the sum of each
// action's declared cost.
type Plan struct {
	Actions []action.Action
	Cost    float64
}

// Planner runs A* search over a fixed Catalogue.
type Planner struct {
	catalogue     *action.Catalogue
	maxExpansions int
	deadline      time.Duration
}

// New builds a Planner bounded by maxExpansions and deadline, matching
// the public MAX_EXPANSIONS/PLAN_DEADLINE_MS contract.
func New(catalogue *action.Catalogue, maxExpansions int, deadline time.Duration) *Planner {
	return &Planner{catalogue: catalogue, maxExpansions: maxExpansions, deadline: deadline}
}

type searchNode struct {
	s         state.State
	g         float64
	h         int
	seq       int // insertion order, for deterministic tie-break
	path      []action.Action
	canonical string
}

// priorityQueue orders by f=g+h ascending, then h ascending, then
// insertion order — the total tie-break the determinism property
// requires.
type priorityQueue []*searchNode

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	fi := pq[i].g + float64(pq[i].h)
	fj := pq[j].g + float64(pq[j].h)
	if fi != fj {
		return fi < fj
	}
	if pq[i].h != pq[j].h {
		return pq[i].h < pq[j].h
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*searchNode)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Plan searches for the minimum-cost action sequence taking initial to
// a state satisfying goal. Returns ErrGoalAlreadySatisfied (with an
// empty Plan) if goal already holds, or ErrNoPlanFound if the search
// exhausts its bounds.
func (p *Planner) Plan(initial state.State, goal state.Predicate) (Plan, error) {
	if goal.Eval(initial) {
		return Plan{}, platform.ErrGoalAlreadySatisfied
	}

	start := time.Now()
	seq := 0
	open := &priorityQueue{}
	heap.Init(open)
	heap.Push(open, &searchNode{
		s: initial, g: 0, h: goal.UnmetCount(initial), seq: seq,
		canonical: initial.Canonical(),
	})

	bestG := map[string]float64{initial.Canonical(): 0}
	expansions := 0

	for open.Len() > 0 {
		if expansions >= p.maxExpansions {
			return Plan{}, fmt.Errorf("%w: expansions=%d", platform.ErrNoPlanFound, expansions)
		}
		if p.deadline > 0 && time.Since(start) > p.deadline {
			return Plan{}, fmt.Errorf("%w: deadline exceeded after %d expansions", platform.ErrNoPlanFound, expansions)
		}

		node := heap.Pop(open).(*searchNode)
		if g, ok := bestG[node.canonical]; ok && node.g > g {
			continue // stale entry; a strictly better path already closed this state
		}
		expansions++

		if goal.Eval(node.s) {
			total := 0.0
			for _, a := range node.path {
				total += a.Cost
			}
			return Plan{Actions: node.path, Cost: total}, nil
		}

		for _, a := range p.catalogue.ApplicableFrom(node.s) {
			next := a.Apply(node.s)
			canon := next.Canonical()
			ng := node.g + a.Cost
			if existing, ok := bestG[canon]; ok && ng >= existing {
				continue
			}
			bestG[canon] = ng
			seq++
			path := make([]action.Action, len(node.path)+1)
			copy(path, node.path)
			path[len(node.path)] = a
			heap.Push(open, &searchNode{
				s: next, g: ng, h: goal.UnmetCount(next), seq: seq,
				path: path, canonical: canon,
			})
		}
	}

	return Plan{}, fmt.Errorf("%w: open set exhausted after %d expansions", platform.ErrNoPlanFound, expansions)
}
