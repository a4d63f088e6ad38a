package contracts

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// AESGCMCrypto implements Crypto with AES-256-GCM and SHA-256, the
// primitives named in §6. Cryptographic primitives are explicitly out
// of the orchestration core's scope ("assumed available"); this is a
// thin, unexported-key-management-free wrapper so the rest of the code
// only ever depends on the Crypto interface.
type AESGCMCrypto struct{}

func (AESGCMCrypto) GenerateEphemeralKey() (Key, error) {
	raw := make([]byte, 32) // AES-256
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return Key{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	return NewKey(raw), nil
}

func (AESGCMCrypto) Encrypt(key Key, plaintext []byte) (EncryptedPayload, error) {
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("new gcm: %w", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedPayload{}, fmt.Errorf("generate iv: %w", err)
	}
	ciphertext := gcm.Seal(nil, iv, plaintext, nil)
	return EncryptedPayload{
		IV:          iv,
		Ciphertext:  ciphertext,
		Algorithm:   "AES-GCM-256",
		PayloadSize: len(ciphertext),
	}, nil
}

func (AESGCMCrypto) SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SystemClock implements Clock with the wall clock.
type SystemClock struct{}

func (SystemClock) NowMs() int64 { return time.Now().UnixMilli() }

// FixedClock implements Clock with a fixed value, for deterministic
// tests.
type FixedClock struct{ Ms int64 }

func (f FixedClock) NowMs() int64 { return f.Ms }

// UUIDRandom implements Random with google/uuid v4 generation.
type UUIDRandom struct{}

func (UUIDRandom) UUID() string { return uuid.NewString() }

// SequenceRandom implements Random deterministically, returning
// successive ids from a fixed list, for tests that must assert on a
// known run id.
type SequenceRandom struct {
	IDs []string
	idx int
}

func (s *SequenceRandom) UUID() string {
	if s.idx >= len(s.IDs) {
		return fmt.Sprintf("seq-%d", s.idx)
	}
	id := s.IDs[s.idx]
	s.idx++
	return id
}
