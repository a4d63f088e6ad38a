package state

// Predicate is a conjunction of clauses over a State, used both as an
// action precondition and as a planner goal. Clauses are independently
// evaluable so the planner's heuristic can count unmet clauses without
// re-evaluating the whole predicate.
type Predicate struct {
	Clauses []Clause
}

// Clause is a single equality/inequality test over one state key.
type Clause struct {
	// BoolKey/BoolWant test a completion-flag-style key: the clause holds
	// when State.Bool(BoolKey) == BoolWant.
	BoolKey string
	BoolWant bool
	hasBool bool

	// FitzNotUnknown tests that the fitzpatrick type is any value other
	// than FitzUnknown.
	FitzNotUnknown bool

	// ConfidenceAtLeast / ConfidenceBelow express inequalities on the
	// confidence score.
	ConfidenceAtLeast *float64
	ConfidenceBelow   *float64
}

// Bool builds a clause asserting State.Bool(key) == want.
func Bool(key string, want bool) Clause {
	return Clause{BoolKey: key, BoolWant: want, hasBool: true}
}

// FitzDetected builds a clause asserting the fitzpatrick type has been
// set to something other than FitzUnknown.
func FitzDetected() Clause {
	return Clause{FitzNotUnknown: true}
}

// ConfidenceAtLeast builds a clause asserting confidence_score >= v.
func ConfidenceAtLeast(v float64) Clause {
	return Clause{ConfidenceAtLeast: &v}
}

// ConfidenceBelow builds a clause asserting confidence_score < v.
func ConfidenceBelow(v float64) Clause {
	return Clause{ConfidenceBelow: &v}
}

// Eval reports whether c holds on s.
func (c Clause) Eval(s State) bool {
	if c.hasBool {
		return s.Bool(c.BoolKey) == c.BoolWant
	}
	if c.FitzNotUnknown {
		return s.Fitzpatrick() != FitzUnknown
	}
	if c.ConfidenceAtLeast != nil {
		v, ok := s.Confidence()
		return ok && v >= *c.ConfidenceAtLeast
	}
	if c.ConfidenceBelow != nil {
		v, ok := s.Confidence()
		return ok && v < *c.ConfidenceBelow
	}
	return true
}

// And builds a Predicate from the given clauses (all must hold).
func And(clauses ...Clause) Predicate {
	return Predicate{Clauses: clauses}
}

// Eval reports whether every clause in p holds on s.
func (p Predicate) Eval(s State) bool {
	for _, c := range p.Clauses {
		if !c.Eval(s) {
			return false
		}
	}
	return true
}

// UnmetCount returns the number of clauses in p that do not hold on s —
// the planner's admissible heuristic (§4.1).
func (p Predicate) UnmetCount(s State) int {
	n := 0
	for _, c := range p.Clauses {
		if !c.Eval(s) {
			n++
		}
	}
	return n
}
