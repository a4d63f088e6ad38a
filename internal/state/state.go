// Package state defines the WorldState value type shared by the
// planner, the execution engine, and every executor: a typed snapshot
// over a closed key alphabet.
package state

import (
	"fmt"
	"sort"
	"strings"
)

// FitzpatrickType is the enumerated skin-phototype classification. Zero
// value FitzUnknown means "not yet detected".
type FitzpatrickType int

const (
	FitzUnknown FitzpatrickType = iota
	FitzI
	FitzII
	FitzIII
	FitzIV
	FitzV
	FitzVI
)

func (f FitzpatrickType) String() string {
	switch f {
	case FitzI:
		return "I"
	case FitzII:
		return "II"
	case FitzIII:
		return "III"
	case FitzIV:
		return "IV"
	case FitzV:
		return "V"
	case FitzVI:
		return "VI"
	default:
		return "none"
	}
}

// Keys enumerates the full state alphabet. Apply ignores any key not in
// this set — the alphabet is closed by construction.
const (
	KeySkinToneDetected         = "skin_tone_detected"
	KeyIsLowConfidence          = "is_low_confidence"
	KeySafetyCalibrated         = "safety_calibrated"
	KeyCalibrationComplete      = "calibration_complete"
	KeyPreprocessingComplete    = "preprocessing_complete"
	KeySegmentationComplete     = "segmentation_complete"
	KeyFeaturesExtracted        = "features_extracted"
	KeyLesionsDetected          = "lesions_detected"
	KeySimilaritySearched       = "similarity_searched"
	KeyRiskAssessed             = "risk_assessed"
	KeyFairnessAudited          = "fairness_audited"
	KeyRecommendationGenerated  = "recommendation_generated"
	KeyLearningCommitted        = "learning_committed"
	KeyPayloadEncrypted         = "payload_encrypted"
	KeyAuditLogged              = "audit_logged"
	KeyFitzpatrickType          = "fitzpatrick_type"
	KeyConfidenceScore          = "confidence_score"
	KeyFairnessScore            = "fairness_score"
)

// completionFlags is the set of keys that §3 invariant (i) requires to be
// monotonic: once true they never revert outside of an explicit replan
// reset.
var completionFlags = map[string]bool{
	KeySkinToneDetected:        true,
	KeySafetyCalibrated:        true,
	KeyCalibrationComplete:     true,
	KeyPreprocessingComplete:   true,
	KeySegmentationComplete:    true,
	KeyFeaturesExtracted:       true,
	KeyLesionsDetected:         true,
	KeySimilaritySearched:      true,
	KeyRiskAssessed:            true,
	KeyFairnessAudited:         true,
	KeyRecommendationGenerated: true,
	KeyLearningCommitted:       true,
	KeyPayloadEncrypted:        true,
	KeyAuditLogged:             true,
}

// IsCompletionFlag reports whether key is one of the monotonic
// completion flags in the state alphabet.
func IsCompletionFlag(key string) bool { return completionFlags[key] }

var validKeys = func() map[string]bool {
	m := map[string]bool{
		KeyIsLowConfidence: true,
		KeyFitzpatrickType: true,
		KeyConfidenceScore: true,
		KeyFairnessScore:   true,
	}
	for k := range completionFlags {
		m[k] = true
	}
	return m
}()

// IsValidKey reports whether key belongs to the closed state alphabet.
func IsValidKey(key string) bool { return validKeys[key] }

// State is an immutable-by-convention typed snapshot. Callers obtain a
// modified copy via Apply/ResetCompletionFlags rather than mutating in place, so a
// State value can be safely shared between the planner's search nodes
// and a run's committed trace.
type State struct {
	bools   map[string]bool
	fitz    FitzpatrickType
	confidence float64
	fairness   float64
	hasConfidence bool
	hasFairness   bool
}

// New returns the canonical zero-value initial state: every completion
// flag false, fitzpatrick type undetected, scores absent.
func New() State {
	return State{bools: make(map[string]bool)}
}

// Clone returns a deep copy safe to mutate independently.
func (s State) Clone() State {
	out := State{
		bools:         make(map[string]bool, len(s.bools)),
		fitz:          s.fitz,
		confidence:    s.confidence,
		fairness:      s.fairness,
		hasConfidence: s.hasConfidence,
		hasFairness:   s.hasFairness,
	}
	for k, v := range s.bools {
		out.bools[k] = v
	}
	return out
}

// Bool returns the value of a boolean key (false if unset).
func (s State) Bool(key string) bool { return s.bools[key] }

// Fitzpatrick returns the currently detected phototype.
func (s State) Fitzpatrick() FitzpatrickType { return s.fitz }

// Confidence returns the confidence score and whether it has been set.
func (s State) Confidence() (float64, bool) { return s.confidence, s.hasConfidence }

// Fairness returns the fairness score and whether it has been set.
func (s State) Fairness() (float64, bool) { return s.fairness, s.hasFairness }

// Delta is a partial update to a State: effects and executor
// state_updates are both expressed as Deltas and merged via Apply.
type Delta struct {
	Bools         map[string]bool
	Fitzpatrick   *FitzpatrickType
	Confidence    *float64
	Fairness      *float64
}

// Apply returns a new State with d merged in. Completion flags can only
// move false->true (§3 invariant i); attempting to clear one is a no-op
// rather than an error, so that a stale executor response can never
// regress authoritative effects — callers that need an explicit reset
// must use ResetCompletionFlags for an intentional replan.
func (s State) Apply(d Delta) State {
	out := s.Clone()
	for k, v := range d.Bools {
		if !validKeys[k] {
			continue
		}
		if completionFlags[k] && out.bools[k] && !v {
			continue
		}
		out.bools[k] = v
	}
	if d.Fitzpatrick != nil {
		out.fitz = *d.Fitzpatrick
	}
	if d.Confidence != nil {
		out.confidence = *d.Confidence
		out.hasConfidence = true
	}
	if d.Fairness != nil {
		out.fairness = *d.Fairness
		out.hasFairness = true
	}
	return out
}

// ResetCompletionFlags clears the named completion flags. This is the
// only sanctioned way to revert a monotonic flag, reserved for an
// explicit replan reset.
func (s State) ResetCompletionFlags(keys ...string) State {
	out := s.Clone()
	for _, k := range keys {
		if completionFlags[k] {
			out.bools[k] = false
		}
	}
	return out
}

// Canonical returns a deterministic string serialisation suitable as a
// planner search-node key: sorted bool keys, then fitz/confidence/
// fairness, so that value-equal states compare byte-identical
// regardless of insertion order.
func (s State) Canonical() string {
	keys := make([]string, 0, len(s.bools))
	for k := range s.bools {
		if s.bools[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(strings.Join(keys, ","))
	fmt.Fprintf(&b, "|fitz=%d", s.fitz)
	if s.hasConfidence {
		fmt.Fprintf(&b, "|conf=%.6f", s.confidence)
	}
	if s.hasFairness {
		fmt.Fprintf(&b, "|fair=%.6f", s.fairness)
	}
	return b.String()
}

// Satisfies reports whether every clause in p holds on s.
func (s State) Satisfies(p Predicate) bool { return p.Eval(s) }
