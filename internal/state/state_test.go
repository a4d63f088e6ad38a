package state

import "testing"

import "github.com/stretchr/testify/assert"

func TestApply_CompletionFlagMonotonic(t *testing.T) {
	s := New()
	s = s.Apply(Delta{Bools: map[string]bool{KeySkinToneDetected: true}})
	assert.True(t, s.Bool(KeySkinToneDetected))

	// Attempting to clear via Apply must be a no-op.
	s2 := s.Apply(Delta{Bools: map[string]bool{KeySkinToneDetected: false}})
	assert.True(t, s2.Bool(KeySkinToneDetected), "completion flag must not regress via Apply")
}

func TestResetCompletionFlags_ExplicitOnly(t *testing.T) {
	s := New().Apply(Delta{Bools: map[string]bool{KeySkinToneDetected: true}})
	s = s.ResetCompletionFlags(KeySkinToneDetected)
	assert.False(t, s.Bool(KeySkinToneDetected))
}

func TestCanonical_OrderIndependent(t *testing.T) {
	a := New().Apply(Delta{Bools: map[string]bool{
		KeySkinToneDetected: true,
		KeyCalibrationComplete: true,
	}})
	b := New().Apply(Delta{Bools: map[string]bool{
		KeyCalibrationComplete: true,
		KeySkinToneDetected: true,
	}})
	assert.Equal(t, a.Canonical(), b.Canonical())
}

func TestPredicate_UnmetCount(t *testing.T) {
	goal := And(Bool(KeyAuditLogged, true), Bool(KeyPayloadEncrypted, true))
	s := New()
	assert.Equal(t, 2, goal.UnmetCount(s))
	s = s.Apply(Delta{Bools: map[string]bool{KeyPayloadEncrypted: true}})
	assert.Equal(t, 1, goal.UnmetCount(s))
}
