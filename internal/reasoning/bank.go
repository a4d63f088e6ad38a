package reasoning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/contracts"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
)

// Bank is the Reasoning Bank: a similarity store whose pattern ids are
// random UUIDs assigned at Store (an id is not derived from the
// pattern's content), polymorphic over an Embedder, shared process-wide with interior
// synchronisation (§3 ownership, §5 shared-resource policy).
type Bank struct {
	dim                   int
	maxPatternsBruteForce int
	flushInterval         time.Duration

	log   *patternLog
	meta  *metadataStore
	cache *hotCache

	embedder contracts.Embedder
	logger   platform.Logger

	mu       sync.RWMutex
	patterns []Pattern
	byID     map[string]int
	ann      *projectionIndex

	stopFlush chan struct{}
}

// Open loads the bank from dir (creating it if absent), replaying
// patterns.log and rebuilding the in-memory/metadata indexes.
func Open(dir string, dim, maxPatternsBruteForce int, flushInterval time.Duration, embedder contracts.Embedder, redisURL string, logger platform.Logger) (*Bank, error) {
	if logger == nil {
		logger = platform.NoOpLogger{}
	}
	log, err := openPatternLog(dir)
	if err != nil {
		return nil, err
	}
	meta, err := openMetadataStore(dir)
	if err != nil {
		log.close()
		return nil, err
	}

	b := &Bank{
		dim: dim, maxPatternsBruteForce: maxPatternsBruteForce, flushInterval: flushInterval,
		log: log, meta: meta, cache: newHotCache(redisURL),
		embedder: embedder, logger: logger,
		byID:      make(map[string]int),
		stopFlush: make(chan struct{}),
	}

	recovered, err := log.replay()
	if err != nil {
		return nil, err
	}
	for _, p := range recovered {
		b.indexInMemory(p)
		if err := meta.index(p); err != nil {
			return nil, err
		}
	}
	if len(b.patterns) > maxPatternsBruteForce {
		b.buildANN()
	}

	go b.flushLoop()
	return b, nil
}

func (b *Bank) indexInMemory(p Pattern) {
	p.Embedding = normalize(p.Embedding)
	idx := len(b.patterns)
	b.patterns = append(b.patterns, p)
	b.byID[p.ID] = idx
	if b.ann != nil {
		b.ann.add(idx, p.Embedding)
	}
}

func (b *Bank) buildANN() {
	b.ann = newProjectionIndex(b.dim, 0x5eed1234)
	for i, p := range b.patterns {
		b.ann.add(i, p.Embedding)
	}
}

func (b *Bank) flushLoop() {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			if err := b.log.flush(); err != nil {
				b.logger.Warn("reasoning bank periodic flush failed", map[string]interface{}{"error": err.Error()})
			}
			b.mu.Unlock()
		case <-b.stopFlush:
			return
		}
	}
}

// Close stops the flush ticker and releases file/db/cache handles.
func (b *Bank) Close() error {
	close(b.stopFlush)
	if err := b.log.close(); err != nil {
		return err
	}
	if err := b.meta.close(); err != nil {
		return err
	}
	return b.cache.close()
}

// StoreOptions controls one Store call's durability.
type StoreOptions struct {
	Durable bool
}

// Store appends pattern, assigning an id if unset, and rejects
// embeddings whose dimension doesn't match the bank's declared D.
func (b *Bank) Store(p Pattern, opts StoreOptions) (string, error) {
	if err := validateDimension(p.Embedding, b.dim); err != nil {
		return "", fmt.Errorf("%w: %v", platform.ErrDimensionMismatch, err)
	}
	p.Embedding = normalize(p.Embedding)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.log.append(p, opts.Durable); err != nil {
		return "", err
	}
	if err := b.meta.index(p); err != nil {
		return "", err
	}
	b.indexInMemory(p)
	if len(b.patterns) == b.maxPatternsBruteForce+1 {
		b.buildANN()
	}
	return p.ID, nil
}

// SearchQuery is Search's input: exactly one of Embedding or Text must
// be set (Text requires the bank's Embedder to be configured).
type SearchQuery struct {
	Embedding []float32
	Text      string
	K         int
	Filter    Filter
}

// Search returns up to K patterns ordered by cosine similarity
// descending, restricted by an optional Filter.
func (b *Bank) Search(ctx context.Context, q SearchQuery) ([]ScoredPattern, error) {
	embedding := q.Embedding
	if embedding == nil {
		if q.Text == "" {
			return nil, fmt.Errorf("reasoning: search requires embedding or text")
		}
		if b.embedder == nil {
			return nil, fmt.Errorf("reasoning: search by text requires a configured embedder")
		}
		enc, err := b.embedder.Encode(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("reasoning: encode query text: %w", err)
		}
		embedding = enc
	}
	if err := validateDimension(embedding, b.dim); err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrDimensionMismatch, err)
	}
	query := normalize(embedding)

	key := cacheKey(query, q.K, q.Filter)
	if cached, ok := b.cache.get(ctx, key); ok {
		return cached, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var allowedIDs map[string]bool
	if q.Filter.TaskType != "" || q.Filter.Fitzpatrick != "" {
		ids, err := b.meta.matchingIDs(q.Filter)
		if err != nil {
			return nil, err
		}
		allowedIDs = ids
	}

	var candidateIdx []int
	if b.ann != nil {
		candidateIdx = b.ann.candidates(query)
	} else {
		candidateIdx = make([]int, len(b.patterns))
		for i := range b.patterns {
			candidateIdx[i] = i
		}
	}

	scored := make([]ScoredPattern, 0, len(candidateIdx))
	for _, i := range candidateIdx {
		p := b.patterns[i]
		if allowedIDs != nil && !allowedIDs[p.ID] {
			continue
		}
		scored = append(scored, ScoredPattern{Pattern: p, Score: cosineSim(query, p.Embedding)})
	}
	scored = topK(scored, q.K)

	b.cache.set(ctx, key, scored)
	return scored, nil
}

// Count returns the number of stored patterns, used by tests.
func (b *Bank) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.patterns)
}

// PatternMetadataJSON returns pattern id's metadata rendered as JSON,
// for `orchctl patterns dump`'s operator-facing output.
func (b *Bank) PatternMetadataJSON(id string) (string, bool, error) {
	return b.meta.metadataJSON(id)
}

// PatternIDs returns every stored pattern's id, in insertion order.
func (b *Bank) PatternIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, len(b.patterns))
	for i, p := range b.patterns {
		ids[i] = p.ID
	}
	return ids
}
