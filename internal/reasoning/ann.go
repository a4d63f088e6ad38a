package reasoning

import "sort"

// projectionIndex is a random-hyperplane LSH bucket index: the
// approximate path used once the pattern set exceeds
// maxPatternsBruteForce (§4.4). Each pattern's bucket is the sign
// vector of its dot product against a fixed set of random hyperplanes;
// a query only scans patterns sharing its bucket, trading a small
// recall loss for sub-linear search.
type projectionIndex struct {
	planes  [][]float32 // fixed random hyperplanes, seeded at construction
	buckets map[string][]int // bucket signature -> pattern indices
}

const annPlaneCount = 12

func newProjectionIndex(dim int, seed uint64) *projectionIndex {
	planes := make([][]float32, annPlaneCount)
	rng := newSplitMix64(seed)
	for i := range planes {
		plane := make([]float32, dim)
		for j := range plane {
			plane[j] = float32(rng.nextFloat()*2 - 1)
		}
		planes[i] = plane
	}
	return &projectionIndex{planes: planes, buckets: make(map[string][]int)}
}

func (idx *projectionIndex) signature(v []float32) string {
	sig := make([]byte, len(idx.planes))
	for i, plane := range idx.planes {
		var dot float32
		for j, x := range plane {
			if j < len(v) {
				dot += x * v[j]
			}
		}
		if dot >= 0 {
			sig[i] = 1
		}
	}
	return string(sig)
}

// add indexes pattern at position i in the bank's in-memory slice.
func (idx *projectionIndex) add(i int, v []float32) {
	sig := idx.signature(v)
	idx.buckets[sig] = append(idx.buckets[sig], i)
}

// candidates returns the indices sharing v's bucket. Recall is traded
// for speed; the bank's brute-force path is used below
// maxPatternsBruteForce precisely so small catalogues never pay this
// cost.
func (idx *projectionIndex) candidates(v []float32) []int {
	return idx.buckets[idx.signature(v)]
}

// splitMix64 is a minimal deterministic PRNG used only to seed the
// index's fixed hyperplanes reproducibly across restarts (same seed
// must yield the same buckets for existing patterns).
type splitMix64 struct{ state uint64 }

func newSplitMix64(seed uint64) *splitMix64 { return &splitMix64{state: seed} }

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (s *splitMix64) nextFloat() float64 {
	return float64(s.next()>>11) / float64(1<<53)
}

// topK sorts scored descending by score, tie-broken by pattern id
// ascending (§4.4's deterministic tie-break), and truncates to k.
func topK(scored []ScoredPattern, k int) []ScoredPattern {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Pattern.ID < scored[j].Pattern.ID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
