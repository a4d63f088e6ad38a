package contracts

import (
	"bytes"
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
)

// jpegMagic, pngMagic, and the "RIFF" prefix checked for webp are the
// magic-byte signatures §6 requires be checked against the first 12
// bytes of a run's declared image_mime before planning begins.
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	riffMagic = []byte("RIFF")
)

const artifactMagicWindow = 12

// ValidateArtifact checks mime against a magic-byte inspection of the
// first 12 bytes of data, per §6's run-input contract. A mismatch (or
// an unsupported mime) is reported as ErrInvalidArtifact before any
// planning is attempted (scenario S-C).
func ValidateArtifact(mime string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty artifact", platform.ErrInvalidArtifact)
	}
	head := data
	if len(head) > artifactMagicWindow {
		head = head[:artifactMagicWindow]
	}

	var ok bool
	switch mime {
	case "image/jpeg":
		ok = bytes.HasPrefix(head, jpegMagic)
	case "image/png":
		ok = bytes.HasPrefix(head, pngMagic)
	case "image/webp":
		ok = bytes.HasPrefix(head, riffMagic)
	default:
		return fmt.Errorf("%w: unsupported mime %q", platform.ErrInvalidArtifact, mime)
	}
	if !ok {
		return fmt.Errorf("%w: magic bytes do not match declared mime %q", platform.ErrInvalidArtifact, mime)
	}
	return nil
}
