// Package backends provides deterministic, locally-computed
// implementations of the contracts.* external capabilities, used as the
// CLI's default when no external vision/LLM provider is configured.
// These are not a claim of diagnostic accuracy: the real capabilities
// are explicitly out of the orchestration core's scope (§1, §6); this
// package exists so `orchctl run` produces a real, reproducible trace
// without a network dependency, in the spirit of the teacher's
// Mock* fixtures (gomind's core.MockDiscovery) adapted into a runnable
// default rather than a test-only stand-in.
package backends

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/contracts"
)

var fitzLabels = []string{"I", "II", "III", "IV", "V", "VI"}
var lesionLabels = []string{"Nevus", "Seborrheic Keratosis", "Melanoma", "Basal Cell Carcinoma"}

// LocalVision derives deterministic classifications from an image's
// byte digest, so repeated runs on the same input produce the same
// trace. Classify is called once for skin tone and once for lesion
// typing by the pipeline; every call returns both a phototype label
// (from digest[0]) and a lesion label (from digest[1]) sharing one score
// (from digest[2]), and each caller takes the label it needs.
type LocalVision struct{}

func (LocalVision) Classify(ctx context.Context, image []byte) ([]contracts.Classification, error) {
	digest := sha256.Sum256(image)
	fitzIdx := int(digest[0]) % len(fitzLabels)
	lesionIdx := int(digest[1]) % len(lesionLabels)
	score := 0.5 + float64(digest[2])/512.0 // in [0.5, 1.0)

	return []contracts.Classification{
		{Label: fitzLabels[fitzIdx], Score: score},
		{Label: lesionLabels[lesionIdx], Score: score},
	}, nil
}

func (LocalVision) Heatmap(ctx context.Context, image []byte) ([]byte, error) {
	digest := sha256.Sum256(image)
	return digest[:], nil
}

// LocalGenerator renders deterministic template text instead of calling
// an LLM; useful for demos and for tests asserting on stable output.
type LocalGenerator struct{}

func (LocalGenerator) Generate(ctx context.Context, prompt, system string) (string, error) {
	return fmt.Sprintf("[%s] %s", system, prompt), nil
}

// LocalEmbedder derives a deterministic, fixed-dimension embedding from
// a SHA-256 digest of the input text, repeated/truncated to the
// requested dimension.
type LocalEmbedder struct {
	Dim int
}

func (e LocalEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	digest := sha256.Sum256([]byte(text))
	out := make([]float32, e.Dim)
	for i := range out {
		out[i] = float32(digest[i%len(digest)]) / 255.0
	}
	return out, nil
}

// LocalNotifier logs alerts instead of paging an out-of-band channel.
type LocalNotifier struct {
	Log func(record contracts.AlertRecord)
}

func (n LocalNotifier) Alert(ctx context.Context, record contracts.AlertRecord) error {
	if n.Log != nil {
		n.Log(record)
	}
	return nil
}
