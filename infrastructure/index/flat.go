// Package index implements the nearest-neighbour index behind the vector
// search provider: a flat cosine index over unit vectors with tombstone
// deletes, gob snapshots and full rebuilds from stored embeddings.
package index

import (
	"container/heap"
	"sort"
)

// scored pairs an internal id with its similarity to the query.
type scored struct {
	internalID uint64
	score      float64
}

// flatStore holds the raw vectors in insertion order. Vectors are unit
// normalized, so the dot product equals cosine similarity.
type flatStore struct {
	dim  int
	ids  []uint64
	vecs [][]float32
}

func newFlatStore(dim int) *flatStore {
	return &flatStore{dim: dim}
}

func (s *flatStore) add(id uint64, vec []float32) {
	s.ids = append(s.ids, id)
	s.vecs = append(s.vecs, vec)
}

func (s *flatStore) size() int { return len(s.ids) }

// search returns the k highest-scoring entries not rejected by skip,
// ordered by score descending with ties broken by internal id ascending.
func (s *flatStore) search(query []float32, k int, skip func(uint64) bool) []scored {
	if k <= 0 {
		return nil
	}

	h := &scoredHeap{}
	heap.Init(h)
	for i, id := range s.ids {
		if skip != nil && skip(id) {
			continue
		}
		sc := scored{internalID: id, score: dot(query, s.vecs[i])}
		if h.Len() < k {
			heap.Push(h, sc)
			continue
		}
		if scoredLess((*h)[0], sc) {
			(*h)[0] = sc
			heap.Fix(h, 0)
		}
	}

	out := make([]scored, h.Len())
	copy(out, *h)
	sort.Slice(out, func(i, j int) bool { return scoredLess(out[j], out[i]) })
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// scoredLess orders by score ascending, ties by internal id descending,
// so the heap root is always the weakest candidate.
func scoredLess(a, b scored) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.internalID > b.internalID
}

// scoredHeap is a min-heap of candidates keyed by scoredLess.
type scoredHeap []scored

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return scoredLess(h[i], h[j]) }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
