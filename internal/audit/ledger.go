// Package audit implements the Hash-Chained Audit Ledger (C7): an
// append-only binary log of tamper-evident entries, each attesting to
// one run's execution trace and safety classification.
package audit

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/contracts"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/filelock"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
)

// SafetyLevel is the deterministic classification stamped on every
// entry.
type SafetyLevel byte

const (
	SafetyLow SafetyLevel = iota
	SafetyMedium
	SafetyHigh
)

func (s SafetyLevel) String() string {
	switch s {
	case SafetyHigh:
		return "HIGH"
	case SafetyMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// EntrySize is the fixed binary record size: prev_hash(32) +
// trace_digest(32) + image_digest(32) + safety_level(1) + ts(8) +
// entry_hash(32).
const EntrySize = 32 + 32 + 32 + 1 + 8 + 32

// Entry is one hash-chained ledger record.
type Entry struct {
	PrevHash    [32]byte
	TraceDigest [32]byte
	ImageDigest [32]byte
	SafetyLevel SafetyLevel
	Ts          int64
	EntryHash   [32]byte
	Degraded    bool
}

// Encode serialises e to its fixed 137-byte wire form.
func (e Entry) Encode() []byte {
	buf := make([]byte, EntrySize)
	off := 0
	copy(buf[off:], e.PrevHash[:])
	off += 32
	copy(buf[off:], e.TraceDigest[:])
	off += 32
	copy(buf[off:], e.ImageDigest[:])
	off += 32
	buf[off] = byte(e.SafetyLevel)
	off++
	binary.BigEndian.PutUint64(buf[off:], uint64(e.Ts))
	off += 8
	copy(buf[off:], e.EntryHash[:])
	return buf
}

// Decode parses a 137-byte record.
func Decode(buf []byte) (Entry, error) {
	if len(buf) != EntrySize {
		return Entry{}, fmt.Errorf("audit: invalid entry size %d", len(buf))
	}
	var e Entry
	off := 0
	copy(e.PrevHash[:], buf[off:off+32])
	off += 32
	copy(e.TraceDigest[:], buf[off:off+32])
	off += 32
	copy(e.ImageDigest[:], buf[off:off+32])
	off += 32
	e.SafetyLevel = SafetyLevel(buf[off])
	off++
	e.Ts = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	copy(e.EntryHash[:], buf[off:off+32])
	return e, nil
}

// ComputeHash returns H(prev_hash || trace_digest || image_digest ||
// safety_level || ts) using the injected Crypto capability.
func ComputeHash(crypto contracts.Crypto, prevHash, traceDigest, imageDigest [32]byte, level SafetyLevel, ts int64) [32]byte {
	buf := make([]byte, 0, 32+32+32+1+8)
	buf = append(buf, prevHash[:]...)
	buf = append(buf, traceDigest[:]...)
	buf = append(buf, imageDigest[:]...)
	buf = append(buf, byte(level))
	tsBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBuf, uint64(ts))
	buf = append(buf, tsBuf...)
	return crypto.SHA256(buf)
}

// Ledger is the process-wide shared audit log. All appends are
// serialised by a single in-process mutex plus a cross-process file
// lock (§5).
type Ledger struct {
	path     string
	crypto   contracts.Crypto
	clock    contracts.Clock
	notifier contracts.Notifier
	logger   platform.Logger

	mu       sync.Mutex
	head     [32]byte
	degraded [][]byte // entries written while the store was unreachable
}

// Open loads (or initialises) the ledger at path. The initial entry's
// prev_hash is the fixed zero digest per §3.
func Open(path string, crypto contracts.Crypto, clock contracts.Clock, notifier contracts.Notifier, logger platform.Logger) (*Ledger, error) {
	if logger == nil {
		logger = platform.NoOpLogger{}
	}
	l := &Ledger{path: path, crypto: crypto, clock: clock, notifier: notifier, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil // head stays zero digest
		}
		return nil, fmt.Errorf("audit: read %s: %w", path, err)
	}
	n := len(data) / EntrySize
	truncated := len(data) % EntrySize
	if truncated != 0 {
		if err := os.Truncate(path, int64(n*EntrySize)); err != nil {
			return nil, fmt.Errorf("audit: truncate %s: %w", path, err)
		}
		logger.Warn("audit log tail truncated on recovery", map[string]interface{}{"bytes_discarded": truncated})
	}
	if n > 0 {
		last, err := Decode(data[(n-1)*EntrySize : n*EntrySize])
		if err != nil {
			return nil, err
		}
		l.head = last.EntryHash
	}
	return l, nil
}

// ClassifySafety implements §4.5's deterministic classifier.
func ClassifySafety(criticalError bool, primaryLesion, riskLabel string, confidenceScore float64) SafetyLevel {
	if criticalError || (primaryLesion == "Melanoma" && riskLabel == "High") || confidenceScore < 0.3 {
		return SafetyHigh
	}
	if confidenceScore < 0.65 {
		return SafetyMedium
	}
	return SafetyLow
}

// EventType enumerates the audit entry kinds.
type EventType string

const (
	EventAnalysisCompleted EventType = "ANALYSIS_COMPLETED"
	EventAnalysisHalted    EventType = "ANALYSIS_HALTED"
)

const appendDeadline = 2 * time.Second

// Append writes a new entry chained onto the current head. Bounded by
// a 2s deadline; on timeout the entry is still returned (marked
// Degraded) and queued for flush on the next successful append —
// append is always best-effort for the caller, never a hard failure.
func (l *Ledger) Append(ctx context.Context, eventType EventType, traceDigest, imageDigest [32]byte, level SafetyLevel) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.clock.NowMs()
	entry := Entry{
		PrevHash:    l.head,
		TraceDigest: traceDigest,
		ImageDigest: imageDigest,
		SafetyLevel: level,
		Ts:          ts,
	}
	entry.EntryHash = ComputeHash(l.crypto, entry.PrevHash, entry.TraceDigest, entry.ImageDigest, entry.SafetyLevel, entry.Ts)

	done := make(chan error, 1)
	go func() { done <- l.persist(entry.Encode()) }()

	select {
	case err := <-done:
		if err != nil {
			entry.Degraded = true
			l.degraded = append(l.degraded, entry.Encode())
			l.logger.Warn("audit append degraded", map[string]interface{}{"error": err.Error()})
		} else {
			l.head = entry.EntryHash
			l.flushDegraded()
		}
	case <-time.After(appendDeadline):
		entry.Degraded = true
		l.degraded = append(l.degraded, entry.Encode())
		l.logger.Warn("audit append exceeded deadline, queued", map[string]interface{}{"deadline_ms": appendDeadline.Milliseconds()})
		l.head = entry.EntryHash // head advances regardless; caller holds the authoritative record
	}

	if level == SafetyHigh && l.notifier != nil {
		go func() {
			_ = l.notifier.Alert(context.Background(), contracts.AlertRecord{
				SafetyLevel: level.String(),
				Reason:      string(eventType),
			})
		}()
	}

	return entry, nil
}

func (l *Ledger) persist(buf []byte) error {
	return filelock.AppendLock(l.path, func() error {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open %s: %w", l.path, err)
		}
		defer f.Close()
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("write %s: %w", l.path, err)
		}
		return f.Sync()
	})
}

// flushDegraded retries queued entries opportunistically; it must be
// called with l.mu held.
func (l *Ledger) flushDegraded() {
	if len(l.degraded) == 0 {
		return
	}
	remaining := l.degraded[:0]
	for _, buf := range l.degraded {
		if err := l.persist(buf); err != nil {
			remaining = append(remaining, buf)
			continue
		}
	}
	l.degraded = remaining
}

// Verify walks path's entries and returns the index of the first entry
// whose hash chain is broken, or -1 if all entries verify (§8 property
// 5 / scenario S-F). A missing file verifies as an empty log.
func Verify(path string, crypto contracts.Crypto) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return -1, fmt.Errorf("audit verify: read %s: %w", path, err)
	}
	n := len(data) / EntrySize
	var prev [32]byte
	for i := 0; i < n; i++ {
		e, err := Decode(data[i*EntrySize : (i+1)*EntrySize])
		if err != nil {
			return i, err
		}
		if e.PrevHash != prev {
			return i, nil
		}
		want := ComputeHash(crypto, e.PrevHash, e.TraceDigest, e.ImageDigest, e.SafetyLevel, e.Ts)
		if want != e.EntryHash {
			return i, nil
		}
		prev = e.EntryHash
	}
	return -1, nil
}
