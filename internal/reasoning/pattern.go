// Package reasoning implements the Reasoning Bank (C6): a
// similarity store over embeddings, backed by a
// durable append-only pattern log plus a structured metadata index.
package reasoning

import (
	"fmt"
	"math"
)

// Pattern is an immutable reasoning record: created by the learning
// executor, read by the similarity-search executor, never updated in
// place — corrections are stored as new patterns with
// Metadata["isCorrection"]=true (§3, §9 open question ii).
type Pattern struct {
	ID          string
	TaskType    string
	Approach    string
	Outcome     string
	SuccessRate float64
	Timestamp   int64
	Metadata    map[string]interface{}
	Embedding   []float32
}

// ScoredPattern pairs a Pattern with its cosine similarity to a query.
type ScoredPattern struct {
	Pattern Pattern
	Score   float32
}

// Filter restricts Search to a subset of patterns by declared metadata.
type Filter struct {
	TaskType    string
	Fitzpatrick string
}

func (f Filter) matches(p Pattern) bool {
	if f.TaskType != "" && p.TaskType != f.TaskType {
		return false
	}
	if f.Fitzpatrick != "" {
		v, _ := p.Metadata["fitzpatrick"].(string)
		if v != f.Fitzpatrick {
			return false
		}
	}
	return true
}

func validateDimension(embedding []float32, d int) error {
	if len(embedding) != d {
		return fmt.Errorf("pattern embedding has dimension %d, bank declared %d", len(embedding), d)
	}
	return nil
}

// normalize returns an L2-normalised copy of v. A zero vector is
// returned unchanged — cosine similarity against it is defined as 0.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func cosineSim(a, b []float32) float32 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot)
}
