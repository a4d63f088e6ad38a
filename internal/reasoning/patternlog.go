package reasoning

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/filelock"
)

// record is the CBOR wire form appended to patterns.log: a
// varint-prefixed, normalised-embedding-inlined pattern, per §6.
type record struct {
	ID          string                 `cbor:"id"`
	TaskType    string                 `cbor:"task_type"`
	Approach    string                 `cbor:"approach"`
	Outcome     string                 `cbor:"outcome"`
	SuccessRate float64                `cbor:"success_rate"`
	Timestamp   int64                  `cbor:"timestamp"`
	Metadata    map[string]interface{} `cbor:"metadata"`
	Embedding   []float32              `cbor:"embedding"`
}

// patternLog is the append-only durable store: patterns.log holds the
// records, and each append also writes an "id\toffset\n" line to
// patterns.idx. replay does not read patterns.idx; a cold start always
// scans the whole log.
type patternLog struct {
	logPath string
	idxPath string

	mu         sync.Mutex
	file       *os.File
	idxFile    *os.File
	offset     int64
	flushEvery int // not read: fsync happens on durable appends and on the bank's flush ticker
	sinceFlush int
}

func openPatternLog(dir string) (*patternLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reasoning: mkdir %s: %w", dir, err)
	}
	pl := &patternLog{
		logPath: filepath.Join(dir, "patterns.log"),
		idxPath: filepath.Join(dir, "patterns.idx"),
	}
	f, err := os.OpenFile(pl.logPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("reasoning: open %s: %w", pl.logPath, err)
	}
	pl.file = f

	idxF, err := os.OpenFile(pl.idxPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reasoning: open %s: %w", pl.idxPath, err)
	}
	pl.idxFile = idxF

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("reasoning: stat %s: %w", pl.logPath, err)
	}
	pl.offset = info.Size()
	return pl, nil
}

// replay reads every intact record from the log, truncating the file
// at the first short read or decode failure — a crash-safe recovery
// matching §4.4.
func (pl *patternLog) replay() ([]Pattern, error) {
	f, err := os.Open(pl.logPath)
	if err != nil {
		return nil, fmt.Errorf("reasoning: replay open: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []Pattern
	var validUpTo int64

	for {
		startPos := validUpTo
		length, n, err := readUvarint(r)
		if err != nil {
			break // EOF or short read: stop, discard any trailing bytes
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			break
		}
		var rec record
		if err := cbor.Unmarshal(buf, &rec); err != nil {
			break
		}
		validUpTo = startPos + int64(n) + int64(length)
		out = append(out, Pattern{
			ID: rec.ID, TaskType: rec.TaskType, Approach: rec.Approach, Outcome: rec.Outcome,
			SuccessRate: rec.SuccessRate, Timestamp: rec.Timestamp, Metadata: rec.Metadata, Embedding: rec.Embedding,
		})
	}

	if validUpTo != pl.offset {
		if err := pl.file.Truncate(validUpTo); err != nil {
			return nil, fmt.Errorf("reasoning: truncate corrupt tail: %w", err)
		}
		pl.offset = validUpTo
	}
	return out, nil
}

// append writes p to the log. When durable is true the write is
// fsync'd before returning; otherwise fsync is deferred to the bank's
// periodic flush ticker.
func (pl *patternLog) append(p Pattern, durable bool) (int64, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	rec := record{
		ID: p.ID, TaskType: p.TaskType, Approach: p.Approach, Outcome: p.Outcome,
		SuccessRate: p.SuccessRate, Timestamp: p.Timestamp, Metadata: p.Metadata, Embedding: p.Embedding,
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("reasoning: marshal pattern: %w", err)
	}
	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, uint64(len(data)))

	offset := pl.offset
	if err := filelock.AppendLock(pl.logPath, func() error {
		if _, err := pl.file.Write(lenBuf[:n]); err != nil {
			return err
		}
		_, err := pl.file.Write(data)
		return err
	}); err != nil {
		return 0, fmt.Errorf("reasoning: append pattern: %w", err)
	}
	pl.offset += int64(n) + int64(len(data))
	pl.sinceFlush++

	if _, err := fmt.Fprintf(pl.idxFile, "%s\t%d\n", p.ID, offset); err != nil {
		return 0, fmt.Errorf("reasoning: append idx: %w", err)
	}

	if durable {
		if err := pl.flush(); err != nil {
			return 0, err
		}
	}
	return offset, nil
}

func (pl *patternLog) flush() error {
	if err := pl.file.Sync(); err != nil {
		return fmt.Errorf("reasoning: fsync log: %w", err)
	}
	if err := pl.idxFile.Sync(); err != nil {
		return fmt.Errorf("reasoning: fsync idx: %w", err)
	}
	pl.sinceFlush = 0
	return nil
}

func (pl *patternLog) close() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	err1 := pl.file.Close()
	err2 := pl.idxFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func readUvarint(r *bufio.Reader) (uint64, int, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, 0, err
	}
	// binary.ReadUvarint doesn't report bytes consumed; re-derive via
	// PutUvarint on the decoded value for offset bookkeeping.
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, v)
	return v, n, nil
}
