package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
)

func TestValidateArtifact_AcceptsMatchingMagicBytes(t *testing.T) {
	cases := []struct {
		mime string
		data []byte
	}{
		{"image/jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 'J', 'F', 'I', 'F'}},
		{"image/png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
		{"image/webp", []byte("RIFF\x00\x00\x00\x00WEBP")},
	}
	for _, c := range cases {
		assert.NoError(t, ValidateArtifact(c.mime, c.data), c.mime)
	}
}

func TestValidateArtifact_RejectsMismatchedMagicBytes(t *testing.T) {
	// Declared jpeg, actual png signature — scenario S-C.
	err := ValidateArtifact("image/jpeg", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	assert.ErrorIs(t, err, platform.ErrInvalidArtifact)
}

func TestValidateArtifact_RejectsUnsupportedMime(t *testing.T) {
	err := ValidateArtifact("image/gif", []byte{0x47, 0x49, 0x46, 0x38})
	assert.ErrorIs(t, err, platform.ErrInvalidArtifact)
}

func TestValidateArtifact_RejectsEmptyPayload(t *testing.T) {
	err := ValidateArtifact("image/jpeg", nil)
	assert.ErrorIs(t, err, platform.ErrInvalidArtifact)
}
