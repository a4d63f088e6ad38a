// Package contracts declares the external capabilities the orchestration
// core consumes but never implements a concrete backend for: vision and
// language model clients, the embedder, cryptographic primitives, the
// out-of-band notifier, and the clock/random sources tests inject for
// determinism.
package contracts

import "context"

// Generator is an LLM-like completion capability. Its callers have no
// fallback generator: an error from Generate is surfaced by the calling
// executor (as ErrExecutorUnavailable, or as a logged warning where the
// output is optional) and is not retried against another backend.
type Generator interface {
	Generate(ctx context.Context, prompt string, system string) (string, error)
}

// Classification is one (label, score) pair from a VisionSpecialist.
type Classification struct {
	Label string
	Score float64
}

// VisionSpecialist classifies image bytes and can render a heatmap
// overlay for the same input.
type VisionSpecialist interface {
	Classify(ctx context.Context, image []byte) ([]Classification, error)
	Heatmap(ctx context.Context, image []byte) ([]byte, error)
}

// Embedder turns text into the reasoning bank's fixed-dimension vector
// space. Dimension is fixed at bank construction; callers must not
// assume a particular D here.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// EncryptedPayload is the result of Crypto.Encrypt.
type EncryptedPayload struct {
	IV          []byte
	Ciphertext  []byte
	Algorithm   string
	PayloadSize int
}

// Key is an opaque ephemeral encryption key, scoped to one run's
// process lifetime and zeroised on Zero.
type Key struct {
	raw []byte
}

// NewKey wraps raw key bytes.
func NewKey(raw []byte) Key { return Key{raw: raw} }

// Bytes exposes the raw key material for use by a Crypto implementation.
func (k Key) Bytes() []byte { return k.raw }

// Zero overwrites the key material in place; call on every run exit
// path per §5's ephemeral-key lifecycle.
func (k *Key) Zero() {
	for i := range k.raw {
		k.raw[i] = 0
	}
}

// Crypto is the abstract cryptographic capability. Primitives
// themselves are out of scope (assumed available); this interface lets
// the engine depend on a capability rather than a concrete algorithm
// choice.
type Crypto interface {
	GenerateEphemeralKey() (Key, error)
	Encrypt(key Key, plaintext []byte) (EncryptedPayload, error)
	SHA256(data []byte) [32]byte
}

// AlertRecord is the payload passed to Notifier.Alert for a HIGH
// safety-level entry.
type AlertRecord struct {
	AnalysisID  string
	SafetyLevel string
	RunID       string
	Reason      string
}

// Notifier raises out-of-band alerts. Best-effort: failures never roll
// back an audit append.
type Notifier interface {
	Alert(ctx context.Context, record AlertRecord) error
}

// Clock abstracts wall-clock time so tests can inject deterministic
// timestamps.
type Clock interface {
	NowMs() int64
}

// Random abstracts id generation so tests can inject deterministic ids.
type Random interface {
	UUID() string
}
