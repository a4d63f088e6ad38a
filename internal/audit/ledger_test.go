package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/contracts"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
)

func TestLedger_ChainIntegrity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	crypto := contracts.AESGCMCrypto{}
	clock := contracts.FixedClock{Ms: 1000}

	l, err := Open(path, crypto, clock, nil, platform.NoOpLogger{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := l.Append(context.Background(), EventAnalysisCompleted, [32]byte{byte(i)}, [32]byte{byte(i + 1)}, SafetyLow)
		require.NoError(t, err)
	}

	idx, err := Verify(path, crypto)
	require.NoError(t, err)
	assert.Equal(t, -1, idx, "all entries should verify")
}

func TestLedger_TamperDetection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	crypto := contracts.AESGCMCrypto{}
	clock := contracts.FixedClock{Ms: 2000}

	l, err := Open(path, crypto, clock, nil, platform.NoOpLogger{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := l.Append(context.Background(), EventAnalysisCompleted, [32]byte{byte(i)}, [32]byte{byte(i + 1)}, SafetyLow)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[1*EntrySize+5] ^= 0xFF // corrupt a byte inside entry index 1
	require.NoError(t, os.WriteFile(path, data, 0o644))

	idx, err := Verify(path, crypto)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestClassifySafety(t *testing.T) {
	assert.Equal(t, SafetyHigh, ClassifySafety(true, "", "", 0.9))
	assert.Equal(t, SafetyHigh, ClassifySafety(false, "Melanoma", "High", 0.9))
	assert.Equal(t, SafetyHigh, ClassifySafety(false, "", "", 0.2))
	assert.Equal(t, SafetyMedium, ClassifySafety(false, "", "", 0.5))
	assert.Equal(t, SafetyLow, ClassifySafety(false, "", "", 0.9))
}
